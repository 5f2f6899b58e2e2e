package eth

import (
	"context"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

type MockEthClient struct {
	StartFunc       func()
	BlockNumberFunc func(ctx context.Context) (uint64, error)
	FilterLogsFunc  func(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

func (m *MockEthClient) Start() {
	if m.StartFunc != nil {
		m.StartFunc()
	}
}

func (m *MockEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	if m.BlockNumberFunc != nil {
		return m.BlockNumberFunc(ctx)
	}

	return 0, nil
}

func (m *MockEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	if m.FilterLogsFunc != nil {
		return m.FilterLogsFunc(ctx, q)
	}

	return nil, nil
}
