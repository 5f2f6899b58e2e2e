package client

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

type MockBridge struct {
	ChainKeyFunc               func(ctx context.Context) (common.Hash, error)
	GetWithdrawApprovalFunc    func(ctx context.Context, hash common.Hash) (*types.WithdrawApproval, error)
	GetWithdrawFromHashFunc    func(ctx context.Context, hash common.Hash) (*types.Withdraw, error)
	GetDepositFromHashFunc     func(ctx context.Context, hash common.Hash) (*types.Deposit, error)
	PendingApprovalsFunc       func(ctx context.Context) ([]*types.PendingApproval, error)
	ApproveWithdrawFunc        func(ctx context.Context, req *types.ApproveRequest) (common.Hash, error)
	CancelWithdrawApprovalFunc func(ctx context.Context, hash common.Hash) error
}

func (m *MockBridge) ChainKey(ctx context.Context) (common.Hash, error) {
	if m.ChainKeyFunc != nil {
		return m.ChainKeyFunc(ctx)
	}

	return common.Hash{}, nil
}

func (m *MockBridge) GetWithdrawApproval(ctx context.Context, hash common.Hash) (*types.WithdrawApproval, error) {
	if m.GetWithdrawApprovalFunc != nil {
		return m.GetWithdrawApprovalFunc(ctx, hash)
	}

	return nil, ErrNotFound
}

func (m *MockBridge) GetWithdrawFromHash(ctx context.Context, hash common.Hash) (*types.Withdraw, error) {
	if m.GetWithdrawFromHashFunc != nil {
		return m.GetWithdrawFromHashFunc(ctx, hash)
	}

	return nil, ErrNotFound
}

func (m *MockBridge) GetDepositFromHash(ctx context.Context, hash common.Hash) (*types.Deposit, error) {
	if m.GetDepositFromHashFunc != nil {
		return m.GetDepositFromHashFunc(ctx, hash)
	}

	return nil, ErrNotFound
}

func (m *MockBridge) PendingApprovals(ctx context.Context) ([]*types.PendingApproval, error) {
	if m.PendingApprovalsFunc != nil {
		return m.PendingApprovalsFunc(ctx)
	}

	return nil, nil
}

func (m *MockBridge) ApproveWithdraw(ctx context.Context, req *types.ApproveRequest) (common.Hash, error) {
	if m.ApproveWithdrawFunc != nil {
		return m.ApproveWithdrawFunc(ctx, req)
	}

	return common.Hash{}, nil
}

func (m *MockBridge) CancelWithdrawApproval(ctx context.Context, hash common.Hash) error {
	if m.CancelWithdrawApprovalFunc != nil {
		return m.CancelWithdrawApprovalFunc(ctx, hash)
	}

	return nil
}
