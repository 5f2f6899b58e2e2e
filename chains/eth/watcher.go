package eth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/groupcache/lru"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/chains"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/database"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const (
	DedupCacheSize = 1_000

	// MaxScanRange caps the block span of a single getLogs query.
	MaxScanRange = 1_000

	// MinBlockTime floors the poll interval (ms) during catch-up so the loop
	// never busy-spins and rpc timeouts derived from it stay usable.
	MinBlockTime = 100
)

// depositRequestTopic is the topic0 of the deposit event emitted by the
// bridge contract:
//
//	DepositRequest(bytes32 indexed depositHash, address indexed from,
//	    bytes32 destChainKey, bytes32 destToken, bytes32 destAccount,
//	    uint256 amount, uint256 nonce)
var depositRequestTopic = crypto.Keccak256Hash(
	[]byte("DepositRequest(bytes32,address,bytes32,bytes32,bytes32,uint256,uint256)"))

type Watcher struct {
	cfg       config.Chain
	chainKey  common.Hash
	client    EthClient
	db        database.Database
	depositCh chan *types.ObservedDeposit

	blockTime     int
	blockHeight   int64 // next block to scan
	bridgeAddress common.Address
	dedupCache    *lru.Cache
	stopped       *atomic.Bool
}

func NewWatcher(db database.Database, cfg config.Chain, depositCh chan *types.ObservedDeposit,
	client EthClient) (chains.Watcher, error) {
	chainKey, err := cfg.ChainKey()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		db:            db,
		cfg:           cfg,
		chainKey:      chainKey,
		depositCh:     depositCh,
		blockTime:     cfg.BlockTime,
		client:        client,
		bridgeAddress: common.HexToAddress(cfg.BridgeAddress),
		dedupCache:    lru.New(DedupCacheSize),
		stopped:       atomic.NewBool(false),
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

// setBlockHeight resumes from the last checkpoint, falling back to the
// configured starting block on a fresh database.
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

	log.Info("Watching from block ", w.blockHeight, " for chain ", w.cfg.Chain)
}

func (w *Watcher) scanBlocks() {
	for {
		if w.stopped.Load() {
			return
		}

		scanned, err := w.scanOnce()
		if err != nil {
			log.Error("Cannot scan chain ", w.cfg.Chain, " at height ", w.blockHeight, " err = ", err)
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

// scanOnce scans one bounded range of finalized blocks. It returns false when
// there is nothing below the confirmation depth to scan yet.
func (w *Watcher) scanOnce() (bool, error) {
	number, err := w.getBlockNumber()
	if err != nil {
		return false, err
	}

	finalized := int64(number) - w.cfg.Confirmations
	if finalized < w.blockHeight {
		return false, nil
	}

	to := finalized
	if to > w.blockHeight+MaxScanRange-1 {
		to = w.blockHeight + MaxScanRange - 1
	}

	logs, err := w.getLogs(w.blockHeight, to)
	if err != nil {
		return false, err
	}

	log.Verbose(w.cfg.Chain, " scanned blocks ", w.blockHeight, " to ", to, ", deposit logs = ", len(logs))

	for _, entry := range logs {
		deposit, err := w.parseDeposit(entry)
		if err != nil {
			log.Errorf("Invalid deposit log on chain %s in tx %s, err = %v",
				w.cfg.Chain, entry.TxHash.String(), err)
			continue
		}

		dedupKey := fmt.Sprintf("%s__%d", deposit.SourceChain, deposit.Nonce)
		if _, ok := w.dedupCache.Get(dedupKey); ok {
			continue
		}

		if err := w.db.UpsertObservedDeposit(deposit); err != nil {
			// Leave blockHeight untouched so the range is rescanned.
			return false, err
		}
		w.dedupCache.Add(dedupKey, true)

		w.depositCh <- deposit
	}

	w.blockHeight = to + 1
	if err := w.db.SaveBlockHeight(w.cfg.Chain, to); err != nil {
		log.Errorf("Cannot save block height for chain %s, err = %v", w.cfg.Chain, err)
	}

	return true, nil
}

// parseDeposit decodes one DepositRequest log and cross-checks the emitted
// deposit hash against the canonical transfer id recomputed from the event
// fields. A mismatch means the contract and this node disagree on the hash
// layout and the deposit must not enter the approval queue.
func (w *Watcher) parseDeposit(entry ethtypes.Log) (*types.ObservedDeposit, error) {
	if len(entry.Topics) != 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(entry.Topics))
	}
	if len(entry.Data) != 160 {
		return nil, fmt.Errorf("expected 160 data bytes, got %d", len(entry.Data))
	}

	depositHash := entry.Topics[1]
	from := common.BytesToAddress(entry.Topics[2].Bytes())
	destChainKey := common.BytesToHash(entry.Data[0:32])
	destToken := common.BytesToHash(entry.Data[32:64])
	destAccount := common.BytesToHash(entry.Data[64:96])
	amount := new(big.Int).SetBytes(entry.Data[96:128])

	nonceWord := new(big.Int).SetBytes(entry.Data[128:160])
	if !nonceWord.IsUint64() {
		return nil, fmt.Errorf("nonce %s overflows uint64", nonceWord.String())
	}
	nonce := nonceWord.Uint64()

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
		From:             from.Hex(),
		Amount:           amount,
		BlockHeight:      int64(entry.BlockNumber),
		Status:           types.DepositStatusObserved,
	}, nil
}

func (w *Watcher) getBlockNumber() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.blockTime)*2*time.Millisecond)
	defer cancel()

	return w.client.BlockNumber(ctx)
}

func (w *Watcher) getLogs(from, to int64) ([]ethtypes.Log, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.blockTime)*2*time.Millisecond)
	defer cancel()

	return w.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		ToBlock:   big.NewInt(to),
		Addresses: []common.Address{w.bridgeAddress},
		Topics:    [][]common.Hash{{depositRequestTopic}},
	})
}
