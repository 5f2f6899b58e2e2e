package cosmos

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/groupcache/lru"
	"github.com/sisu-network/lib/log"
	"github.com/ybbus/jsonrpc/v3"
	"go.uber.org/atomic"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/chains"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/database"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const (
	DedupCacheSize = 1_000

	DepositEventType = "deposit_request"

	// MinBlockTime floors the poll interval (ms) during catch-up so the loop
	// never busy-spins and rpc timeouts derived from it stay usable.
	MinBlockTime = 100
)

// RpcCaller is the narrow slice of jsonrpc.RPCClient the watcher needs, split
// out so tests can fake the node.
type RpcCaller interface {
	Call(ctx context.Context, method string, params ...interface{}) (*jsonrpc.RPCResponse, error)
}

// Watcher polls a CometBFT rpc endpoint for deposit events emitted by the
// bridge module. Heights are only scanned once they are at least the
// configured number of confirmations below the latest height.
type Watcher struct {
	cfg       config.Chain
	chainKey  common.Hash
	client    RpcCaller
	db        database.Database
	depositCh chan *types.ObservedDeposit

	blockTime   int
	blockHeight int64 // next height to scan
	dedupCache  *lru.Cache
	stopped     *atomic.Bool
}

func NewWatcher(db database.Database, cfg config.Chain,
	depositCh chan *types.ObservedDeposit) (chains.Watcher, error) {

	if len(cfg.Rpcs) == 0 {
		return nil, fmt.Errorf("no rpc configured for chain %s", cfg.Chain)
	}

	return newWatcher(db, cfg, depositCh, jsonrpc.NewClient(cfg.Rpcs[0]))
}

func newWatcher(db database.Database, cfg config.Chain, depositCh chan *types.ObservedDeposit,
	client RpcCaller) (*Watcher, error) {

	chainKey, err := cfg.ChainKey()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		db:         db,
		cfg:        cfg,
		chainKey:   chainKey,
		depositCh:  depositCh,
		blockTime:  cfg.BlockTime,
		client:     client,
		dedupCache: lru.New(DedupCacheSize),
		stopped:    atomic.NewBool(false),
	}, nil
}

func (w *Watcher) Start() {
	log.Info("Starting Watcher for chain ", w.cfg.Chain)

	w.setBlockHeight()
	go w.scanBlocks()
}

func (w *Watcher) Stop() {
	w.stopped.Store(true)
}

func (w *Watcher) setBlockHeight() {
	height, err := w.db.LoadBlockHeight(w.cfg.Chain)
	if err != nil {
		log.Errorf("Cannot load block height for chain %s, err = %v", w.cfg.Chain, err)
	}

	if height > 0 {
		w.blockHeight = height + 1
	} else {
		w.blockHeight = w.cfg.StartingBlock
	}

	log.Info("Watching from height ", w.blockHeight, " for chain ", w.cfg.Chain)
}

func (w *Watcher) scanBlocks() {
	for {
		if w.stopped.Load() {
			return
		}

		scanned, err := w.scanOnce()
		if err != nil {
			log.Warn("Cannot scan chain ", w.cfg.Chain, " at height ", w.blockHeight, " err = ", err)
		}
		w.adjustBlockTime(scanned, err)

		time.Sleep(time.Duration(w.blockTime) * time.Millisecond)
	}
}

// adjustBlockTime grows the poll interval when there is nothing to scan (or
// the scan failed) and shrinks it during catch-up, floored at MinBlockTime.
func (w *Watcher) adjustBlockTime(scanned bool, err error) {
	if err != nil || !scanned {
		w.blockTime = w.blockTime + w.cfg.AdjustTime
		return
	}

	w.blockTime = w.blockTime - w.cfg.AdjustTime/4
	if w.blockTime < MinBlockTime {
		w.blockTime = MinBlockTime
	}
}

// scanOnce scans a single height once it is final enough.
func (w *Watcher) scanOnce() (bool, error) {
	latest, err := w.latestHeight()
	if err != nil {
		return false, err
	}

	if latest-w.cfg.Confirmations < w.blockHeight {
		return false, nil
	}

	results, err := w.blockResults(w.blockHeight)
	if err != nil {
		return false, err
	}

	for _, tx := range results.TxsResults {
		if tx.Code != 0 {
			// Failed txs still report their events. Skip them.
			continue
		}

		for _, event := range tx.Events {
			if event.Type != DepositEventType {
				continue
			}

			deposit, err := w.parseDeposit(event)
			if err != nil {
				log.Errorf("Invalid deposit event on chain %s at height %d, err = %v",
					w.cfg.Chain, w.blockHeight, err)
				continue
			}

			dedupKey := fmt.Sprintf("%s__%d", deposit.SourceChain, deposit.Nonce)
			if _, ok := w.dedupCache.Get(dedupKey); ok {
				continue
			}

			if err := w.db.UpsertObservedDeposit(deposit); err != nil {
				return false, err
			}
			w.dedupCache.Add(dedupKey, true)

			w.depositCh <- deposit
		}
	}

	scanned := w.blockHeight
	w.blockHeight++
	if err := w.db.SaveBlockHeight(w.cfg.Chain, scanned); err != nil {
		log.Errorf("Cannot save block height for chain %s, err = %v", w.cfg.Chain, err)
	}

	return true, nil
}

// parseDeposit decodes one deposit_request event and cross-checks the emitted
// deposit hash against the canonical transfer id.
func (w *Watcher) parseDeposit(event Event) (*types.ObservedDeposit, error) {
	hashStr, ok := event.Attribute("deposit_hash")
	if !ok {
		return nil, fmt.Errorf("missing deposit_hash attribute")
	}
	from, ok := event.Attribute("from")
	if !ok {
		return nil, fmt.Errorf("missing from attribute")
	}
	destChainKeyStr, ok := event.Attribute("dest_chain_key")
	if !ok {
		return nil, fmt.Errorf("missing dest_chain_key attribute")
	}
	destTokenStr, ok := event.Attribute("dest_token")
	if !ok {
		return nil, fmt.Errorf("missing dest_token attribute")
	}
	destAccountStr, ok := event.Attribute("dest_account")
	if !ok {
		return nil, fmt.Errorf("missing dest_account attribute")
	}
	amountStr, ok := event.Attribute("amount")
	if !ok {
		return nil, fmt.Errorf("missing amount attribute")
	}
	nonceStr, ok := event.Attribute("nonce")
	if !ok {
		return nil, fmt.Errorf("missing nonce attribute")
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %s", amountStr)
	}
	nonce, err := strconv.ParseUint(nonceStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce %s", nonceStr)
	}

	depositHash := common.HexToHash(hashStr)
	destChainKey := common.HexToHash(destChainKeyStr)
	destToken := common.HexToHash(destTokenStr)
	destAccount := common.HexToHash(destAccountStr)

	expected := transfer.ID(w.chainKey, destChainKey, destToken, destAccount, amount, nonce)
	if expected != depositHash {
		return nil, fmt.Errorf("deposit hash mismatch: event %s, computed %s",
			depositHash.String(), expected.String())
	}

	return &types.ObservedDeposit{
		SourceChain:      w.cfg.Chain,
		Nonce:            nonce,
		DepositHash:      depositHash,
		DestChainKey:     destChainKey,
		DestTokenAddress: destToken,
		DestAccount:      destAccount,
		From:             from,
		Amount:           amount,
		BlockHeight:      w.blockHeight,
		Status:           types.DepositStatusObserved,
	}, nil
}

func (w *Watcher) latestHeight() (int64, error) {
	res, err := w.call("status")
	if err != nil {
		return 0, err
	}

	status := new(StatusResult)
	if err := res.GetObject(status); err != nil {
		return 0, err
	}

	return strconv.ParseInt(status.SyncInfo.LatestBlockHeight, 10, 64)
}

func (w *Watcher) blockResults(height int64) (*BlockResults, error) {
	res, err := w.call("block_results", map[string]string{
		"height": strconv.FormatInt(height, 10),
	})
	if err != nil {
		return nil, err
	}

	results := new(BlockResults)
	if err := res.GetObject(results); err != nil {
		return nil, err
	}

	return results, nil
}

func (w *Watcher) call(method string, params ...interface{}) (*jsonrpc.RPCResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.blockTime)*2*time.Millisecond)
	defer cancel()

	res, err := w.client.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}

	return res, nil
}
