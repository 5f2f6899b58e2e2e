package approver

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/client"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/database"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/fees"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const (
	DefaultPollInterval     = time.Second * 5
	DefaultBackoffBase      = time.Second * 10
	DefaultBackoffCap       = time.Minute * 10
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = time.Minute * 2

	BatchSize  = 50
	RpcTimeout = time.Second * 10
)

// Params tunes the writer's retry behavior. Zero fields fall back to the
// defaults above.
type Params struct {
	FeeRecipient     common.Address
	PollInterval     time.Duration
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Writer drains observed deposits from the store and submits the matching
// withdraw approvals to their destination chains. Work is strictly
// sequential, so there is never more than one in-flight submission per
// deposit row.
type Writer struct {
	db         database.Database
	feeManager fees.FeeManager
	clients    map[string]client.Bridge // dest chain name -> bridge
	params     Params

	chainsByKey map[common.Hash]config.Chain
	keysByChain map[string]common.Hash
	tokenNames  map[common.Hash]string // dest token address word -> config token name

	trigger chan struct{}
	stopped *atomic.Bool
	now     func() time.Time

	consecutiveFailures int
	breakerUntil        time.Time
}

func NewWriter(db database.Database, cfg config.Config, feeManager fees.FeeManager,
	clients map[string]client.Bridge, params Params) (*Writer, error) {

	if params.PollInterval == 0 {
		params.PollInterval = DefaultPollInterval
	}
	if params.BackoffBase == 0 {
		params.BackoffBase = DefaultBackoffBase
	}
	if params.BackoffCap == 0 {
		params.BackoffCap = DefaultBackoffCap
	}
	if params.BreakerThreshold == 0 {
		params.BreakerThreshold = DefaultBreakerThreshold
	}
	if params.BreakerCooldown == 0 {
		params.BreakerCooldown = DefaultBreakerCooldown
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

	tokenNames := make(map[common.Hash]string)
	for name, token := range cfg.Tokens {
		tokenNames[transfer.EncodeEVMAddress(common.HexToAddress(token.Address))] = name
	}

	return &Writer{
		db:          db,
		feeManager:  feeManager,
		clients:     clients,
		params:      params,
		chainsByKey: chainsByKey,
		keysByChain: keysByChain,
		tokenNames:  tokenNames,
		trigger:     make(chan struct{}, 1),
		stopped:     atomic.NewBool(false),
		now:         time.Now,
	}, nil
}

func (w *Writer) Start() {
	log.Info("Starting ApprovalWriter...")
	go w.loop()
}

func (w *Writer) Stop() {
	w.stopped.Store(true)
}

// Poke wakes the writer before the next poll tick. Used when a watcher has
// just observed a fresh deposit.
func (w *Writer) Poke() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Writer) loop() {
	for {
		if w.stopped.Load() {
			return
		}

		select {
		case <-w.trigger:
		case <-time.After(w.params.PollInterval):
		}

		if w.stopped.Load() {
			return
		}

		w.ProcessOnce()
	}
}

// ProcessOnce handles one batch of ready deposits. Exported for tests and
// for the processor's initial catch-up run.
func (w *Writer) ProcessOnce() {
	if w.now().Before(w.breakerUntil) {
		log.Verbose("Approval circuit breaker is open until ", w.breakerUntil)
		return
	}

	deposits, err := w.db.GetReadyDeposits(w.now().Unix(), BatchSize)
	if err != nil {
		log.Error("Cannot load ready deposits, err = ", err)
		return
	}

	for _, deposit := range deposits {
		if w.now().Before(w.breakerUntil) {
			return
		}

		w.processDeposit(deposit)
	}
}

func (w *Writer) processDeposit(deposit *types.ObservedDeposit) {
	err := w.submit(deposit)
	if err == nil {
		w.consecutiveFailures = 0
		return
	}

	switch types.KindOf(err) {
	case types.RejectReplay:
		// Someone (possibly us, before a restart) already approved this
		// deposit. The row is done.
		log.Infof("Deposit %s/%d was already approved", deposit.SourceChain, deposit.Nonce)
		w.markDone(deposit, types.DepositStatusApproved, types.ApprovalStatusConfirmed, err)
		w.consecutiveFailures = 0

	case types.RejectTiming, types.RejectPolicy, types.RejectFee:
		// Permanently refused by the destination. Keep the row for audit.
		log.Warnf("Deposit %s/%d permanently rejected: %v", deposit.SourceChain, deposit.Nonce, err)
		w.markDone(deposit, types.DepositStatusSkipped, types.ApprovalStatusRejected, err)
		w.consecutiveFailures = 0

	default:
		w.recordFailure(deposit, err)
	}
}

// submit pushes one approval to the destination chain. A nil return means the
// approval is durably recorded on the destination.
func (w *Writer) submit(deposit *types.ObservedDeposit) error {
	destChain, ok := w.chainsByKey[deposit.DestChainKey]
	if !ok {
		return types.NewPolicyRejection("unknown destination chain key %s", deposit.DestChainKey.String())
	}

	bridge, ok := w.clients[destChain.Chain]
	if !ok {
		return types.NewTransientError("no bridge client for chain %s", destChain.Chain)
	}

	ctx, cancel := context.WithTimeout(context.Background(), RpcTimeout)
	defer cancel()

	// Check for an existing approval first so a crash between submit and
	// checkpoint does not double-submit after restart.
	approval, err := bridge.GetWithdrawApproval(ctx, deposit.DepositHash)
	if err == nil && approval != nil {
		w.markDone(deposit, types.DepositStatusApproved, types.ApprovalStatusConfirmed, nil)
		return nil
	}
	if err != nil && err != client.ErrNotFound {
		return err
	}

	tokenName, ok := w.tokenNames[deposit.DestTokenAddress]
	if !ok {
		return types.NewPolicyRejection("unregistered destination token %s", deposit.DestTokenAddress.String())
	}

	policy, err := w.feeManager.GetPolicy(tokenName)
	if err != nil {
		return types.NewTransientError("cannot resolve fee policy: %v", err)
	}

	token, err := transfer.DecodeEVMAddress(deposit.DestTokenAddress)
	if err != nil {
		return types.NewPolicyRejection("invalid destination token encoding: %v", err)
	}

	to, err := transfer.DecodeEVMAddress(deposit.DestAccount)
	if err != nil {
		return types.NewPolicyRejection("invalid destination account encoding: %v", err)
	}

	hash, err := bridge.ApproveWithdraw(ctx, &types.ApproveRequest{
		SrcChainKey:      w.keysByChain[deposit.SourceChain],
		Token:            token,
		To:               to,
		DestAccount:      deposit.DestAccount,
		Amount:           deposit.Amount,
		Nonce:            deposit.Nonce,
		Fee:              policy.Fee,
		FeeRecipient:     w.params.FeeRecipient,
		DeductFromAmount: policy.DeductFromAmount,
	})
	if err != nil {
		return err
	}

	if hash != deposit.DepositHash {
		// The destination derived a different transfer id than the source
		// event. This must never happen with a frozen hash layout, so the row
		// is surfaced as rejected rather than recorded as a success.
		log.Errorf("Withdraw hash %s does not match deposit hash %s for %s/%d",
			hash.String(), deposit.DepositHash.String(), deposit.SourceChain, deposit.Nonce)
		return types.NewPolicyRejection("destination derived hash %s, expected %s",
			hash.String(), deposit.DepositHash.String())
	}

	w.markDone(deposit, types.DepositStatusApproved, types.ApprovalStatusConfirmed, nil)
	return nil
}

func (w *Writer) markDone(deposit *types.ObservedDeposit, depositStatus, approvalStatus string, cause error) {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	destChain := ""
	if chain, ok := w.chainsByKey[deposit.DestChainKey]; ok {
		destChain = chain.Chain
	}

	err := w.db.UpsertSubmittedApproval(&types.SubmittedApproval{
		DestChain:    destChain,
		WithdrawHash: deposit.DepositHash,
		SourceChain:  deposit.SourceChain,
		Nonce:        deposit.Nonce,
		Status:       approvalStatus,
		Attempts:     deposit.Attempts + 1,
		LastError:    lastError,
	})
	if err != nil {
		log.Error("Cannot record submitted approval, err = ", err)
	}

	err = w.db.UpdateDepositStatus(deposit.SourceChain, deposit.Nonce, depositStatus)
	if err != nil {
		log.Error("Cannot update deposit status, err = ", err)
	}
}

func (w *Writer) recordFailure(deposit *types.ObservedDeposit, cause error) {
	attempts := deposit.Attempts + 1

	backoff := w.params.BackoffBase
	for i := 1; i < attempts && backoff < w.params.BackoffCap; i++ {
		backoff *= 2
	}
	if backoff > w.params.BackoffCap {
		backoff = w.params.BackoffCap
	}

	nextRetry := w.now().Add(backoff).Unix()
	log.Warnf("Approval for %s/%d failed (attempt %d, retry in %s): %v",
		deposit.SourceChain, deposit.Nonce, attempts, backoff, cause)

	err := w.db.RecordDepositFailure(deposit.SourceChain, deposit.Nonce, attempts,
		nextRetry, cause.Error())
	if err != nil {
		log.Error("Cannot record deposit failure, err = ", err)
	}

	w.consecutiveFailures++
	if w.consecutiveFailures >= w.params.BreakerThreshold {
		w.breakerUntil = w.now().Add(w.params.BreakerCooldown)
		w.consecutiveFailures = 0
		log.Warnf("Too many consecutive approval failures, pausing submissions until %s",
			w.breakerUntil)
	}
}
