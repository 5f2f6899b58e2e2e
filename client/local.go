package client

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/bridge"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// LocalBridge adapts an in-process core to the Bridge interface, acting as a
// fixed caller identity. Used when the daemon hosts the destination bridge
// itself and in tests.
type LocalBridge struct {
	core   *bridge.Core
	caller common.Address
}

func NewLocalBridge(core *bridge.Core, caller common.Address) Bridge {
	return &LocalBridge{core: core, caller: caller}
}

func (l *LocalBridge) ChainKey(ctx context.Context) (common.Hash, error) {
	return l.core.ChainKey(), nil
}

func (l *LocalBridge) GetWithdrawApproval(ctx context.Context, hash common.Hash) (*types.WithdrawApproval, error) {
	approval := l.core.GetWithdrawApproval(hash)
	if approval == nil {
		return nil, ErrNotFound
	}

	return approval, nil
}

func (l *LocalBridge) GetWithdrawFromHash(ctx context.Context, hash common.Hash) (*types.Withdraw, error) {
	withdraw := l.core.GetWithdrawFromHash(hash)
	if withdraw == nil {
		return nil, ErrNotFound
	}

	return withdraw, nil
}

func (l *LocalBridge) GetDepositFromHash(ctx context.Context, hash common.Hash) (*types.Deposit, error) {
	deposit := l.core.GetDepositFromHash(hash)
	if deposit == nil {
		return nil, ErrNotFound
	}

	return deposit, nil
}

func (l *LocalBridge) PendingApprovals(ctx context.Context) ([]*types.PendingApproval, error) {
	return l.core.PendingApprovals(), nil
}

func (l *LocalBridge) ApproveWithdraw(ctx context.Context, req *types.ApproveRequest) (common.Hash, error) {
	return l.core.ApproveWithdraw(l.caller, req)
}

func (l *LocalBridge) CancelWithdrawApproval(ctx context.Context, hash common.Hash) error {
	return l.core.CancelWithdrawApproval(l.caller, hash)
}
