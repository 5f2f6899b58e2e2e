package server

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/bridge"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

var (
	approverAddr = common.Address{0xaa}
	cancelerAddr = common.Address{0xbb}
	operatorAddr = common.Address{0xcc}

	tokenAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	userAddr  = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func newTestApi(t *testing.T) (*ApiHandler, *bridge.Core) {
	chainKey := transfer.EVMChainKey(big.NewInt(56))

	ledger := bridge.NewLedger()
	ledger.Mint(tokenAddr, userAddr, big.NewInt(1_000_000))
	registry := bridge.NewInMemoryRegistry()
	registry.Register(tokenAddr, transfer.EVMChainKey(big.NewInt(1)), &types.TokenInfo{
		DestTokenAddress: transfer.EncodeEVMAddress(tokenAddr),
		DestDecimals:     18,
		BridgeType:       types.BridgeTypeMintBurn,
	})

	core := bridge.NewCore(chainKey, time.Minute, registry, bridge.NoopGuard{},
		bridge.NewRateLimiter(), bridge.NewNativeLedger(ledger), operatorAddr)
	core.RegisterMover(types.BridgeTypeMintBurn, bridge.NewMintBurnMover(ledger))

	require.Nil(t, core.GrantApprover(operatorAddr, approverAddr))
	require.Nil(t, core.GrantCanceler(operatorAddr, cancelerAddr))

	return NewApi(core, approverAddr, cancelerAddr, operatorAddr), core
}

func TestApiHandler_ApproveAndCancel(t *testing.T) {
	api, core := newTestApi(t)
	require.Equal(t, "ok", api.CheckHealth())
	require.Equal(t, core.ChainKey(), api.ChainKey())

	srcKey := transfer.EVMChainKey(big.NewInt(1))
	hash, err := api.ApproveWithdraw(&types.ApproveRequest{
		SrcChainKey: srcKey,
		Token:       tokenAddr,
		To:          userAddr,
		DestAccount: transfer.EncodeEVMAddress(userAddr),
		Amount:      big.NewInt(1000),
		Nonce:       0,
		Fee:         big.NewInt(0),
	})
	require.Nil(t, err)

	approval := api.GetWithdrawApproval(hash)
	require.NotNil(t, approval)
	require.True(t, approval.Pending())

	withdraw := api.GetWithdrawFromHash(hash)
	require.NotNil(t, withdraw)
	require.Equal(t, big.NewInt(1000), withdraw.Amount)

	require.Equal(t, 1, len(api.PendingApprovals()))

	require.Nil(t, api.CancelWithdrawApproval(hash))
	require.True(t, api.GetWithdrawApproval(hash).Cancelled)

	require.Nil(t, api.ReenableWithdrawApproval(hash))
	require.True(t, api.GetWithdrawApproval(hash).Pending())
}

func TestApiHandler_DepositRoundTrip(t *testing.T) {
	api, _ := newTestApi(t)

	hash, err := api.Deposit(userAddr, tokenAddr, transfer.EVMChainKey(big.NewInt(1)),
		transfer.EncodeEVMAddress(userAddr), big.NewInt(500))
	require.Nil(t, err)

	deposit := api.GetDepositFromHash(hash)
	require.NotNil(t, deposit)
	require.Equal(t, big.NewInt(500), deposit.Amount)
}
