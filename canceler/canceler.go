package canceler

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/client"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const (
	// DefaultPollInterval must stay well inside the withdraw delay window so
	// every pending approval is inspected at least once before it becomes
	// executable.
	DefaultPollInterval = time.Second * 10

	RpcTimeout = time.Second * 10
)

// Canceler is an independent watchtower. It inspects every pending approval
// on every destination chain, recomputes the transfer id from the approval's
// own stored withdraw fields, and verifies a matching deposit exists on the
// claimed source chain. Approvals that definitely cannot correspond to a real
// deposit are vetoed; anything unverifiable because of an rpc failure is left
// for the next pass.
type Canceler struct {
	clients      map[string]client.Bridge // chain name -> bridge
	chainsByKey  map[common.Hash]config.Chain
	keysByChain  map[string]common.Hash
	pollInterval time.Duration

	stopped *atomic.Bool
}

func NewCanceler(cfg config.Config, clients map[string]client.Bridge,
	pollInterval time.Duration) (*Canceler, error) {

	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	chainsByKey := make(map[common.Hash]config.Chain)
	keysByChain := make(map[string]common.Hash)
	for _, chain := range cfg.Chains {
		key, err := chain.ChainKey()
		if err != nil {
			return nil, err
		}
		chainsByKey[key] = chain
		keysByChain[chain.Chain] = key
	}

	return &Canceler{
		clients:      clients,
		chainsByKey:  chainsByKey,
		keysByChain:  keysByChain,
		pollInterval: pollInterval,
		stopped:      atomic.NewBool(false),
	}, nil
}

func (c *Canceler) Start() {
	log.Info("Starting Canceler...")
	go c.loop()
}

func (c *Canceler) Stop() {
	c.stopped.Store(true)
}

func (c *Canceler) loop() {
	for {
		if c.stopped.Load() {
			return
		}

		c.ProcessOnce()

		time.Sleep(c.pollInterval)
	}
}

// ProcessOnce runs one verification pass over all destinations.
func (c *Canceler) ProcessOnce() {
	for chain, bridge := range c.clients {
		ctx, cancel := context.WithTimeout(context.Background(), RpcTimeout)
		pending, err := bridge.PendingApprovals(ctx)
		cancel()

		if err != nil {
			log.Warn("Cannot list pending approvals on chain ", chain, " err = ", err)
			continue
		}

		destKey, ok := c.keysByChain[chain]
		if !ok {
			continue
		}

		for _, approval := range pending {
			c.checkOne(chain, destKey, bridge, approval)
		}
	}
}

func (c *Canceler) checkOne(destChain string, destKey common.Hash, destBridge client.Bridge,
	pending *types.PendingApproval) {

	withdraw := pending.Withdraw

	expected := transfer.ID(withdraw.SrcChainKey, destKey,
		transfer.EncodeEVMAddress(withdraw.Token), withdraw.DestAccount,
		withdraw.Amount, withdraw.Nonce)
	if expected != pending.Hash {
		log.Warnf("Approval %s on chain %s does not hash to its own withdraw fields (expected %s)",
			pending.Hash.String(), destChain, expected.String())
		c.cancel(destChain, destBridge, pending.Hash)
		return
	}

	srcChain, ok := c.chainsByKey[withdraw.SrcChainKey]
	if !ok {
		// The approval names a source chain this bridge does not serve. No
		// deposit can ever confirm it.
		log.Warnf("Approval %s on chain %s names unknown source chain key %s",
			pending.Hash.String(), destChain, withdraw.SrcChainKey.String())
		c.cancel(destChain, destBridge, pending.Hash)
		return
	}

	srcBridge, ok := c.clients[srcChain.Chain]
	if !ok {
		log.Verbose("No client for source chain ", srcChain.Chain, ", skipping ", pending.Hash.String())
		return
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), RpcTimeout)
	defer cancelCtx()

	_, err := srcBridge.GetDepositFromHash(ctx, pending.Hash)
	switch {
	case err == nil:
		// A deposit with this exact hash exists on the source. The approval
		// is legitimate.

	case err == client.ErrNotFound:
		log.Warnf("Approval %s on chain %s has no deposit on source chain %s",
			pending.Hash.String(), destChain, srcChain.Chain)
		c.cancel(destChain, destBridge, pending.Hash)

	default:
		// Cannot tell yet. Never veto on an infra failure.
		log.Verbose("Cannot verify approval ", pending.Hash.String(), " err = ", err)
	}
}

func (c *Canceler) cancel(destChain string, destBridge client.Bridge, hash common.Hash) {
	ctx, cancelCtx := context.WithTimeout(context.Background(), RpcTimeout)
	defer cancelCtx()

	err := destBridge.CancelWithdrawApproval(ctx, hash)
	switch {
	case err == nil:
		log.Infof("Cancelled approval %s on chain %s", hash.String(), destChain)

	case types.KindOf(err) == types.RejectTiming:
		// Already cancelled or executed, possibly by another canceler.
		log.Verbose("Approval ", hash.String(), " already settled: ", err)

	default:
		log.Error("Cannot cancel approval ", hash.String(), " on chain ", destChain, " err = ", err)
	}
}
