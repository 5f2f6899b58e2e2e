package cosmos

import (
	"context"
	"math/big"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc/v3"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/database"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

type mockRpcCaller struct {
	CallFunc func(ctx context.Context, method string, params ...interface{}) (*jsonrpc.RPCResponse, error)
}

func (m *mockRpcCaller) Call(ctx context.Context, method string,
	params ...interface{}) (*jsonrpc.RPCResponse, error) {
	return m.CallFunc(ctx, method, params...)
}

func getTestDb() database.Database {
	db := database.NewDb(&config.Config{InMemory: true})
	if err := db.Init(); err != nil {
		panic(err)
	}

	return db
}

func testChainCfg() config.Chain {
	return config.Chain{
		Chain:         "cosmoshub-4",
		Family:        "cosmos",
		ChainId:       "cosmoshub-4",
		BlockTime:     6000,
		AdjustTime:    500,
		StartingBlock: 100,
		Confirmations: 1,
		Rpcs:          []string{"http://localhost:26657"},
	}
}

func depositEvent(t *testing.T, cfg config.Chain, nonce uint64, amount *big.Int) Event {
	srcKey, err := cfg.ChainKey()
	require.Nil(t, err)

	destChainKey := transfer.EVMChainKey(big.NewInt(56))
	destToken := transfer.EncodeEVMAddress(common.HexToAddress("0x2000000000000000000000000000000000000002"))
	destAccount := transfer.EncodeEVMAddress(common.HexToAddress("0x3000000000000000000000000000000000000003"))

	hash := transfer.ID(srcKey, destChainKey, destToken, destAccount, amount, nonce)

	return Event{
		Type: DepositEventType,
		Attributes: []EventAttribute{
			{Key: "deposit_hash", Value: hash.String()},
			{Key: "from", Value: "cosmos1vqup6eaqnkh2vujqgasa2eh95acmflhhe7zmytr"},
			{Key: "dest_chain_key", Value: destChainKey.String()},
			{Key: "dest_token", Value: destToken.String()},
			{Key: "dest_account", Value: destAccount.String()},
			{Key: "amount", Value: amount.String()},
			{Key: "nonce", Value: strconv.FormatUint(nonce, 10)},
		},
	}
}

func TestWatcher_ScanDeposit(t *testing.T) {
	cfg := testChainCfg()
	event := depositEvent(t, cfg, 0, big.NewInt(7777))

	client := &mockRpcCaller{
		CallFunc: func(ctx context.Context, method string, params ...interface{}) (*jsonrpc.RPCResponse, error) {
			switch method {
			case "status":
				return &jsonrpc.RPCResponse{Result: map[string]interface{}{
					"sync_info": map[string]interface{}{"latest_block_height": "101"},
				}}, nil

			case "block_results":
				return &jsonrpc.RPCResponse{Result: map[string]interface{}{
					"height": "100",
					"txs_results": []interface{}{
						map[string]interface{}{"code": 0, "events": []interface{}{eventToJson(event)}},
					},
				}}, nil
			}

			t.Fatal("unexpected method ", method)
			return nil, nil
		},
	}

	db := getTestDb()
	depositCh := make(chan *types.ObservedDeposit, 10)
	watcher, err := newWatcher(db, cfg, depositCh, client)
	require.Nil(t, err)
	watcher.setBlockHeight()

	scanned, err := watcher.scanOnce()
	require.Nil(t, err)
	require.True(t, scanned)

	require.Equal(t, 1, len(depositCh))
	deposit := <-depositCh
	require.Equal(t, "cosmoshub-4", deposit.SourceChain)
	require.Equal(t, big.NewInt(7777), deposit.Amount)
	require.Equal(t, types.DepositStatusObserved, deposit.Status)

	height, err := db.LoadBlockHeight("cosmoshub-4")
	require.Nil(t, err)
	require.Equal(t, int64(100), height)
	require.Equal(t, int64(101), watcher.blockHeight)
}

func TestWatcher_WaitsForConfirmations(t *testing.T) {
	cfg := testChainCfg()
	client := &mockRpcCaller{
		CallFunc: func(ctx context.Context, method string, params ...interface{}) (*jsonrpc.RPCResponse, error) {
			require.Equal(t, "status", method)
			return &jsonrpc.RPCResponse{Result: map[string]interface{}{
				"sync_info": map[string]interface{}{"latest_block_height": "100"},
			}}, nil
		},
	}

	watcher, err := newWatcher(getTestDb(), cfg, make(chan *types.ObservedDeposit, 1), client)
	require.Nil(t, err)
	watcher.setBlockHeight()

	scanned, err := watcher.scanOnce()
	require.Nil(t, err)
	require.False(t, scanned)
}

func TestWatcher_SkipsFailedTxs(t *testing.T) {
	cfg := testChainCfg()
	event := depositEvent(t, cfg, 0, big.NewInt(7777))

	client := &mockRpcCaller{
		CallFunc: func(ctx context.Context, method string, params ...interface{}) (*jsonrpc.RPCResponse, error) {
			switch method {
			case "status":
				return &jsonrpc.RPCResponse{Result: map[string]interface{}{
					"sync_info": map[string]interface{}{"latest_block_height": "101"},
				}}, nil

			default:
				return &jsonrpc.RPCResponse{Result: map[string]interface{}{
					"height": "100",
					"txs_results": []interface{}{
						map[string]interface{}{"code": 5, "events": []interface{}{eventToJson(event)}},
					},
				}}, nil
			}
		},
	}

	depositCh := make(chan *types.ObservedDeposit, 1)
	watcher, err := newWatcher(getTestDb(), cfg, depositCh, client)
	require.Nil(t, err)
	watcher.setBlockHeight()

	scanned, err := watcher.scanOnce()
	require.Nil(t, err)
	require.True(t, scanned)
	require.Equal(t, 0, len(depositCh))
}

func TestWatcher_BlockTimeFloor(t *testing.T) {
	depositCh := make(chan *types.ObservedDeposit, 1)
	watcher, err := newWatcher(getTestDb(), testChainCfg(), depositCh, &mockRpcCaller{})
	require.Nil(t, err)

	// A long catch-up run shrinks the poll interval down to the floor, never
	// to zero.
	for i := 0; i < 1000; i++ {
		watcher.adjustBlockTime(true, nil)
	}
	require.Equal(t, MinBlockTime, watcher.blockTime)

	// Idle and failing scans grow it back.
	watcher.adjustBlockTime(false, nil)
	require.Equal(t, MinBlockTime+watcher.cfg.AdjustTime, watcher.blockTime)
}

func eventToJson(event Event) map[string]interface{} {
	attrs := make([]interface{}, 0)
	for _, attr := range event.Attributes {
		attrs = append(attrs, map[string]interface{}{"key": attr.Key, "value": attr.Value})
	}

	return map[string]interface{}{"type": event.Type, "attributes": attrs}
}
