package canceler

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/client"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

var (
	testToken   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testAccount = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func testConfig() config.Config {
	return config.Config{
		Chains: map[string]config.Chain{
			"ganache1": {Chain: "ganache1", Family: "evm", ChainId: "189985"},
			"ganache2": {Chain: "ganache2", Family: "evm", ChainId: "189986"},
		},
	}
}

// pendingApproval builds a pending approval on ganache2 whose withdraw fields
// hash to its advertised hash.
func pendingApproval(t *testing.T, cfg config.Config, nonce uint64) *types.PendingApproval {
	srcKey, err := cfg.Chains["ganache1"].ChainKey()
	require.Nil(t, err)
	destKey, err := cfg.Chains["ganache2"].ChainKey()
	require.Nil(t, err)

	withdraw := &types.Withdraw{
		SrcChainKey: srcKey,
		Token:       testToken,
		DestAccount: transfer.EncodeEVMAddress(testAccount),
		To:          testAccount,
		Amount:      big.NewInt(1000),
		Nonce:       nonce,
	}

	hash := transfer.ID(srcKey, destKey, transfer.EncodeEVMAddress(testToken),
		withdraw.DestAccount, withdraw.Amount, nonce)

	return &types.PendingApproval{
		Hash:     hash,
		Withdraw: withdraw,
		Approval: &types.WithdrawApproval{IsApproved: true},
	}
}

func newTestCanceler(t *testing.T, source, dest client.Bridge) *Canceler {
	canceler, err := NewCanceler(testConfig(), map[string]client.Bridge{
		"ganache1": source,
		"ganache2": dest,
	}, DefaultPollInterval)
	require.Nil(t, err)

	return canceler
}

func TestCanceler_LegitimateApprovalSurvives(t *testing.T) {
	cfg := testConfig()
	pending := pendingApproval(t, cfg, 0)

	source := &client.MockBridge{
		GetDepositFromHashFunc: func(ctx context.Context, hash common.Hash) (*types.Deposit, error) {
			require.Equal(t, pending.Hash, hash)
			return &types.Deposit{Amount: big.NewInt(1000)}, nil
		},
	}

	dest := &client.MockBridge{
		PendingApprovalsFunc: func(ctx context.Context) ([]*types.PendingApproval, error) {
			return []*types.PendingApproval{pending}, nil
		},
		CancelWithdrawApprovalFunc: func(ctx context.Context, hash common.Hash) error {
			t.Fatal("must not cancel a legitimate approval")
			return nil
		},
	}

	newTestCanceler(t, source, dest).ProcessOnce()
}

func TestCanceler_CancelsWhenDepositAbsent(t *testing.T) {
	cfg := testConfig()
	pending := pendingApproval(t, cfg, 1)

	source := &client.MockBridge{} // GetDepositFromHash returns ErrNotFound

	cancelled := make([]common.Hash, 0)
	dest := &client.MockBridge{
		PendingApprovalsFunc: func(ctx context.Context) ([]*types.PendingApproval, error) {
			return []*types.PendingApproval{pending}, nil
		},
		CancelWithdrawApprovalFunc: func(ctx context.Context, hash common.Hash) error {
			cancelled = append(cancelled, hash)
			return nil
		},
	}

	newTestCanceler(t, source, dest).ProcessOnce()

	require.Equal(t, []common.Hash{pending.Hash}, cancelled)
}

func TestCanceler_CancelsOnHashMismatch(t *testing.T) {
	cfg := testConfig()
	pending := pendingApproval(t, cfg, 2)
	// Tamper with the stored amount so the fields no longer hash to the id.
	pending.Withdraw.Amount = big.NewInt(999999)

	source := &client.MockBridge{
		GetDepositFromHashFunc: func(ctx context.Context, hash common.Hash) (*types.Deposit, error) {
			t.Fatal("mismatch must be decided without touching the source chain")
			return nil, nil
		},
	}

	cancelled := make([]common.Hash, 0)
	dest := &client.MockBridge{
		PendingApprovalsFunc: func(ctx context.Context) ([]*types.PendingApproval, error) {
			return []*types.PendingApproval{pending}, nil
		},
		CancelWithdrawApprovalFunc: func(ctx context.Context, hash common.Hash) error {
			cancelled = append(cancelled, hash)
			return nil
		},
	}

	newTestCanceler(t, source, dest).ProcessOnce()

	require.Equal(t, []common.Hash{pending.Hash}, cancelled)
}

func TestCanceler_SkipsOnTransportError(t *testing.T) {
	cfg := testConfig()
	pending := pendingApproval(t, cfg, 3)

	source := &client.MockBridge{
		GetDepositFromHashFunc: func(ctx context.Context, hash common.Hash) (*types.Deposit, error) {
			return nil, types.NewTransientError("rpc timeout")
		},
	}

	dest := &client.MockBridge{
		PendingApprovalsFunc: func(ctx context.Context) ([]*types.PendingApproval, error) {
			return []*types.PendingApproval{pending}, nil
		},
		CancelWithdrawApprovalFunc: func(ctx context.Context, hash common.Hash) error {
			t.Fatal("must not cancel when the source cannot be queried")
			return nil
		},
	}

	newTestCanceler(t, source, dest).ProcessOnce()
}

func TestCanceler_ToleratesDuplicateCancel(t *testing.T) {
	cfg := testConfig()
	pending := pendingApproval(t, cfg, 4)

	source := &client.MockBridge{}
	dest := &client.MockBridge{
		PendingApprovalsFunc: func(ctx context.Context) ([]*types.PendingApproval, error) {
			return []*types.PendingApproval{pending}, nil
		},
		CancelWithdrawApprovalFunc: func(ctx context.Context, hash common.Hash) error {
			// Another canceler got there first.
			return types.NewTimingRejection("approval is not pending")
		},
	}

	// Must not panic or error out.
	newTestCanceler(t, source, dest).ProcessOnce()
}
