package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/approver"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/bridge"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/canceler"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/chains"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/chains/cosmos"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/chains/eth"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/client"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/database"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/fees"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const DepositChannelSize = 1000

// Processor wires the per-chain pieces together: a watcher and a bridge
// client for every configured chain, a hosted bridge core for chains without
// a remote daemon, and the approval writer plus canceler on top.
type Processor struct {
	cfg        config.Config
	db         database.Database
	feeManager fees.FeeManager

	cores           map[string]*bridge.Core
	approverClients map[string]client.Bridge
	cancelerClients map[string]client.Bridge
	watchers        map[string]chains.Watcher

	writer    *approver.Writer
	canceler  *canceler.Canceler
	depositCh chan *types.ObservedDeposit
}

func NewProcessor(cfg *config.Config, db database.Database, feeManager fees.FeeManager) *Processor {
	return &Processor{
		cfg:             *cfg,
		db:              db,
		feeManager:      feeManager,
		cores:           make(map[string]*bridge.Core),
		approverClients: make(map[string]client.Bridge),
		cancelerClients: make(map[string]client.Bridge),
		watchers:        make(map[string]chains.Watcher),
	}
}

func (p *Processor) Start() error {
	log.Info("Starting bridge processor...")

	p.depositCh = make(chan *types.ObservedDeposit, DepositChannelSize)

	for name, chainCfg := range p.cfg.Chains {
		log.Info("Supported chain and config: ", name, " ", chainCfg)

		if chainCfg.BridgeUrl == "" || name == p.cfg.HostChain {
			core, err := p.hostCore(chainCfg)
			if err != nil {
				return err
			}

			p.cores[name] = core
			p.approverClients[name] = client.NewLocalBridge(core, common.HexToAddress(p.cfg.ApproverAddress))
			p.cancelerClients[name] = client.NewLocalBridge(core, common.HexToAddress(p.cfg.CancelerAddress))
		} else {
			remote := client.NewClient(chainCfg.BridgeUrl)
			remote.TryDial()
			p.approverClients[name] = remote
			p.cancelerClients[name] = remote
		}

		watcher, err := p.newWatcher(chainCfg)
		if err != nil {
			return err
		}
		if watcher != nil {
			p.watchers[name] = watcher
		}
	}

	writer, err := approver.NewWriter(p.db, p.cfg, p.feeManager, p.approverClients, approver.Params{
		FeeRecipient: common.HexToAddress(p.cfg.FeeRecipientAddress),
	})
	if err != nil {
		return err
	}
	p.writer = writer

	canc, err := canceler.NewCanceler(p.cfg, p.cancelerClients, 0)
	if err != nil {
		return err
	}
	p.canceler = canc

	go p.listen()

	for _, watcher := range p.watchers {
		watcher.Start()
	}
	p.writer.Start()
	p.canceler.Start()

	return nil
}

func (p *Processor) Stop() {
	for _, watcher := range p.watchers {
		watcher.Stop()
	}
	if p.writer != nil {
		p.writer.Stop()
	}
	if p.canceler != nil {
		p.canceler.Stop()
	}
}

// hostCore builds the in-process bridge core for one chain: token registry
// with a route to every other configured chain, rate limiter, movers over a
// shared ledger.
func (p *Processor) hostCore(chainCfg config.Chain) (*bridge.Core, error) {
	chainKey, err := chainCfg.ChainKey()
	if err != nil {
		return nil, err
	}

	registry := bridge.NewInMemoryRegistry()
	limiter := bridge.NewRateLimiter()

	for name, token := range p.cfg.Tokens {
		addr := common.HexToAddress(token.Address)

		bridgeType, ok := types.ParseBridgeType(token.BridgeType)
		if !ok {
			return nil, fmt.Errorf("unknown bridge type %s for token %s", token.BridgeType, name)
		}

		info := &types.TokenInfo{
			DestTokenAddress: transfer.EncodeEVMAddress(addr),
			DestDecimals:     18,
			BridgeType:       bridgeType,
		}

		for _, other := range p.cfg.Chains {
			if other.Chain == chainCfg.Chain {
				continue
			}

			otherKey, err := other.ChainKey()
			if err != nil {
				return nil, err
			}
			registry.Register(addr, otherKey, info)
		}

		limit, err := tokenLimit(name, token)
		if err != nil {
			return nil, err
		}
		limiter.SetLimit(addr, limit)
	}

	operator := common.HexToAddress(p.cfg.OperatorAddress)
	ledger := bridge.NewLedger()

	core := bridge.NewCore(chainKey, time.Duration(p.cfg.WithdrawDelaySecs)*time.Second,
		registry, bridge.NoopGuard{}, limiter, bridge.NewNativeLedger(ledger), operator)

	core.RegisterMover(types.BridgeTypeMintBurn, bridge.NewMintBurnMover(ledger))
	core.RegisterMover(types.BridgeTypeLockUnlock,
		bridge.NewLockUnlockMover(ledger, common.HexToAddress(chainCfg.BridgeAddress)))

	if err := core.GrantApprover(operator, common.HexToAddress(p.cfg.ApproverAddress)); err != nil {
		return nil, err
	}
	if err := core.GrantCanceler(operator, common.HexToAddress(p.cfg.CancelerAddress)); err != nil {
		return nil, err
	}

	return core, nil
}

func tokenLimit(name string, token config.Token) (bridge.TokenLimit, error) {
	limit := bridge.TokenLimit{}

	if token.MaxPerTransaction != "" {
		value, ok := new(big.Int).SetString(token.MaxPerTransaction, 10)
		if !ok {
			return limit, fmt.Errorf("invalid max_per_transaction %s for token %s",
				token.MaxPerTransaction, name)
		}
		limit.MaxPerTransaction = value
	}

	if token.MaxPerPeriod != "" {
		value, ok := new(big.Int).SetString(token.MaxPerPeriod, 10)
		if !ok {
			return limit, fmt.Errorf("invalid max_per_period %s for token %s",
				token.MaxPerPeriod, name)
		}
		limit.MaxPerPeriod = value
	}

	return limit, nil
}

func (p *Processor) newWatcher(chainCfg config.Chain) (chains.Watcher, error) {
	family, ok := transfer.ParseChainFamily(chainCfg.Family)
	if !ok {
		return nil, fmt.Errorf("unknown chain family %s for chain %s", chainCfg.Family, chainCfg.Chain)
	}

	switch family {
	case transfer.FamilyEVM:
		ethClient := eth.NewEthClient(chainCfg)
		ethClient.Start()
		return eth.NewWatcher(p.db, chainCfg, p.depositCh, ethClient)

	case transfer.FamilyCosmos:
		return cosmos.NewWatcher(p.db, chainCfg, p.depositCh)

	default:
		// Destination-only chain. Approvals can still target it through its
		// bridge client; there is just nothing to watch from here.
		log.Warnf("No watcher implementation for chain %s (family %s)", chainCfg.Chain, chainCfg.Family)
		return nil, nil
	}
}

func (p *Processor) listen() {
	for deposit := range p.depositCh {
		log.Verbosef("Observed deposit %s/%d -> %s, amount = %s", deposit.SourceChain,
			deposit.Nonce, deposit.DestChainKey.String(), deposit.Amount.String())

		p.writer.Poke()
	}
}

// HostedCore returns the in-process core for a chain, or nil when the chain
// is served by a remote daemon.
func (p *Processor) HostedCore(chain string) *bridge.Core {
	return p.cores[chain]
}

// GetWatcher returns the watcher of a chain, nil when the chain has none.
func (p *Processor) GetWatcher(chain string) chains.Watcher {
	return p.watchers[chain]
}
