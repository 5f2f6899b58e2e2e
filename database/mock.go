package database

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

type MockDb struct {
	InitFunc                    func() error
	LoadBlockHeightFunc         func(chain string) (int64, error)
	SaveBlockHeightFunc         func(chain string, height int64) error
	UpsertObservedDepositFunc   func(dep *types.ObservedDeposit) error
	GetObservedDepositFunc      func(chain string, nonce uint64) (*types.ObservedDeposit, error)
	GetReadyDepositsFunc        func(now int64, limit int) ([]*types.ObservedDeposit, error)
	UpdateDepositStatusFunc     func(chain string, nonce uint64, status string) error
	RecordDepositFailureFunc    func(chain string, nonce uint64, attempts int, nextRetry int64, lastError string) error
	UpsertSubmittedApprovalFunc func(approval *types.SubmittedApproval) error
	GetSubmittedApprovalFunc    func(destChain string, hash common.Hash) (*types.SubmittedApproval, error)
}

func (mock *MockDb) Init() error {
	if mock.InitFunc != nil {
		return mock.InitFunc()
	}

	return nil
}

func (mock *MockDb) LoadBlockHeight(chain string) (int64, error) {
	if mock.LoadBlockHeightFunc != nil {
		return mock.LoadBlockHeightFunc(chain)
	}

	return 0, nil
}

func (mock *MockDb) SaveBlockHeight(chain string, height int64) error {
	if mock.SaveBlockHeightFunc != nil {
		return mock.SaveBlockHeightFunc(chain, height)
	}

	return nil
}

func (mock *MockDb) UpsertObservedDeposit(dep *types.ObservedDeposit) error {
	if mock.UpsertObservedDepositFunc != nil {
		return mock.UpsertObservedDepositFunc(dep)
	}

	return nil
}

func (mock *MockDb) GetObservedDeposit(chain string, nonce uint64) (*types.ObservedDeposit, error) {
	if mock.GetObservedDepositFunc != nil {
		return mock.GetObservedDepositFunc(chain, nonce)
	}

	return nil, nil
}

func (mock *MockDb) GetReadyDeposits(now int64, limit int) ([]*types.ObservedDeposit, error) {
	if mock.GetReadyDepositsFunc != nil {
		return mock.GetReadyDepositsFunc(now, limit)
	}

	return nil, nil
}

func (mock *MockDb) UpdateDepositStatus(chain string, nonce uint64, status string) error {
	if mock.UpdateDepositStatusFunc != nil {
		return mock.UpdateDepositStatusFunc(chain, nonce, status)
	}

	return nil
}

func (mock *MockDb) RecordDepositFailure(chain string, nonce uint64, attempts int,
	nextRetry int64, lastError string) error {

	if mock.RecordDepositFailureFunc != nil {
		return mock.RecordDepositFailureFunc(chain, nonce, attempts, nextRetry, lastError)
	}

	return nil
}

func (mock *MockDb) UpsertSubmittedApproval(approval *types.SubmittedApproval) error {
	if mock.UpsertSubmittedApprovalFunc != nil {
		return mock.UpsertSubmittedApprovalFunc(approval)
	}

	return nil
}

func (mock *MockDb) GetSubmittedApproval(destChain string, hash common.Hash) (*types.SubmittedApproval, error) {
	if mock.GetSubmittedApprovalFunc != nil {
		return mock.GetSubmittedApprovalFunc(destChain, hash)
	}

	return nil, nil
}
