package client

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// ErrNotFound is the definite "no such record" answer, as opposed to a
// transport failure. Cancelers treat only this as proof of absence.
var ErrNotFound = errors.New("record not found")

// Bridge is a client view of one chain's bridge. Implementations wrap either
// an in-process core or a remote bridge daemon's rpc endpoint.
type Bridge interface {
	ChainKey(ctx context.Context) (common.Hash, error)

	GetWithdrawApproval(ctx context.Context, hash common.Hash) (*types.WithdrawApproval, error)
	GetWithdrawFromHash(ctx context.Context, hash common.Hash) (*types.Withdraw, error)
	GetDepositFromHash(ctx context.Context, hash common.Hash) (*types.Deposit, error)
	PendingApprovals(ctx context.Context) ([]*types.PendingApproval, error)

	ApproveWithdraw(ctx context.Context, req *types.ApproveRequest) (common.Hash, error)
	CancelWithdrawApproval(ctx context.Context, hash common.Hash) error
}
