package bridge

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const EventBufferSize = 1000

type nonceKey struct {
	chainKey common.Hash
	nonce    uint64
}

// Core is the approval ledger and state machine of one chain's bridge. All
// mutations run under a single lock, standing in for the transaction ordering
// a chain would provide: races between execute and cancel on the same hash
// are decided purely by which caller commits first, the loser failing its
// precondition check.
//
// The core owns the one authoritative deposit nonce. No external party ever
// assigns nonces.
type Core struct {
	lock *sync.Mutex

	chainKey      common.Hash
	withdrawDelay time.Duration

	registry TokenRegistry
	guard    GuardChecker
	limiter  *RateLimiter
	movers   map[types.BridgeType]TokenMover
	native   NativeTransferrer

	nonce      uint64
	deposits   map[common.Hash]*types.Deposit
	withdraws  map[common.Hash]*types.Withdraw
	approvals  map[common.Hash]*types.WithdrawApproval
	usedNonces map[nonceKey]bool

	approvers map[common.Address]bool
	cancelers map[common.Address]bool
	operators map[common.Address]bool

	eventCh chan types.Event

	now func() time.Time
}

func NewCore(chainKey common.Hash, withdrawDelay time.Duration, registry TokenRegistry,
	guard GuardChecker, limiter *RateLimiter, native NativeTransferrer,
	operator common.Address) *Core {

	return &Core{
		lock:          &sync.Mutex{},
		chainKey:      chainKey,
		withdrawDelay: withdrawDelay,
		registry:      registry,
		guard:         guard,
		limiter:       limiter,
		movers:        make(map[types.BridgeType]TokenMover),
		native:        native,
		deposits:      make(map[common.Hash]*types.Deposit),
		withdraws:     make(map[common.Hash]*types.Withdraw),
		approvals:     make(map[common.Hash]*types.WithdrawApproval),
		usedNonces:    make(map[nonceKey]bool),
		approvers:     make(map[common.Address]bool),
		cancelers:     make(map[common.Address]bool),
		operators:     map[common.Address]bool{operator: true},
		eventCh:       make(chan types.Event, EventBufferSize),
		now:           time.Now,
	}
}

func (c *Core) ChainKey() common.Hash {
	return c.chainKey
}

// Events returns the notification stream. The core never blocks on a slow
// consumer; overflowing events are dropped with a warning.
func (c *Core) Events() <-chan types.Event {
	return c.eventCh
}

func (c *Core) emit(event types.Event) {
	select {
	case c.eventCh <- event:
	default:
		log.Warnf("event buffer full, dropping %s", event.Name())
	}
}

// RegisterMover installs the token-movement primitive for one bridge type.
func (c *Core) RegisterMover(bridgeType types.BridgeType, mover TokenMover) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.movers[bridgeType] = mover
}

// Approver, canceler and operator are three distinct capability sets so that
// any one of them can be revoked without touching the others.

func (c *Core) GrantApprover(caller, account common.Address) error {
	return c.grantRole(caller, account, c.approvers)
}

func (c *Core) RevokeApprover(caller, account common.Address) error {
	return c.revokeRole(caller, account, c.approvers)
}

func (c *Core) GrantCanceler(caller, account common.Address) error {
	return c.grantRole(caller, account, c.cancelers)
}

func (c *Core) RevokeCanceler(caller, account common.Address) error {
	return c.revokeRole(caller, account, c.cancelers)
}

func (c *Core) GrantOperator(caller, account common.Address) error {
	return c.grantRole(caller, account, c.operators)
}

func (c *Core) grantRole(caller, account common.Address, set map[common.Address]bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.operators[caller] {
		return types.NewPolicyRejection("caller %s lacks the operator role", caller)
	}

	set[account] = true
	return nil
}

func (c *Core) revokeRole(caller, account common.Address, set map[common.Address]bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.operators[caller] {
		return types.NewPolicyRejection("caller %s lacks the operator role", caller)
	}

	delete(set, account)
	return nil
}

// SetWithdrawDelay updates the global cancel window. Operator only.
func (c *Core) SetWithdrawDelay(caller common.Address, delay time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.operators[caller] {
		return types.NewPolicyRejection("caller %s lacks the operator role", caller)
	}

	c.withdrawDelay = delay
	return nil
}

func (c *Core) WithdrawDelay() time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.withdrawDelay
}

// Deposit records a transfer leaving this chain. The deposit row is stored
// and the nonce consumed before the token-debit primitive runs, so the audit
// trail survives a crash mid-call; if the debit itself fails the whole
// mutation is rolled back.
func (c *Core) Deposit(payer, token common.Address, destChainKey, destAccount common.Hash,
	amount *big.Int) (common.Hash, error) {

	c.lock.Lock()
	defer c.lock.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, types.NewPolicyRejection("deposit amount must be positive")
	}

	if err := c.guard.CheckAccount(payer); err != nil {
		return common.Hash{}, err
	}
	if err := c.guard.CheckDeposit(payer, token, amount); err != nil {
		return common.Hash{}, err
	}

	info, err := c.registry.Get(token, destChainKey)
	if err != nil {
		return common.Hash{}, err
	}

	mover, ok := c.movers[info.BridgeType]
	if !ok {
		return common.Hash{}, types.NewPolicyRejection("no mover registered for bridge type %s", info.BridgeType)
	}

	if err := c.limiter.CheckAndConsume(token, amount); err != nil {
		return common.Hash{}, err
	}

	nonce := c.nonce
	c.nonce++

	hash := transfer.ID(c.chainKey, destChainKey, info.DestTokenAddress, destAccount, amount, nonce)
	deposit := &types.Deposit{
		DestChainKey:     destChainKey,
		DestTokenAddress: info.DestTokenAddress,
		DestAccount:      destAccount,
		From:             payer,
		Amount:           new(big.Int).Set(amount),
		Nonce:            nonce,
	}

	// Stored before the external debit call.
	c.deposits[hash] = deposit

	if err := mover.Debit(token, payer, amount); err != nil {
		delete(c.deposits, hash)
		c.nonce = nonce
		c.limiter.Refund(token, amount)
		return common.Hash{}, err
	}

	log.Verbosef("deposit recorded, hash = %s, nonce = %d", hash, nonce)
	c.emit(&types.DepositRequest{DepositHash: hash, Deposit: deposit})

	return hash, nil
}

// ApproveWithdraw creates the approval for a transfer arriving on this chain.
// Approver role only. The (srcChainKey, nonce) pair is the sole replay guard
// and is tracked independently of hash content.
func (c *Core) ApproveWithdraw(caller common.Address, req *types.ApproveRequest) (common.Hash, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.approvers[caller] {
		return common.Hash{}, types.NewPolicyRejection("caller %s lacks the approver role", caller)
	}

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return common.Hash{}, types.NewPolicyRejection("withdraw amount must be positive")
	}

	key := nonceKey{chainKey: req.SrcChainKey, nonce: req.Nonce}
	if c.usedNonces[key] {
		return common.Hash{}, types.NewReplayRejection("nonce %d already used for source chain %s",
			req.Nonce, req.SrcChainKey)
	}

	hash := transfer.ID(req.SrcChainKey, c.chainKey, transfer.EncodeEVMAddress(req.Token),
		req.DestAccount, req.Amount, req.Nonce)

	if existing := c.approvals[hash]; existing != nil {
		if existing.Executed || existing.Pending() {
			// Live or settled terms are never silently overwritten.
			return common.Hash{}, types.NewReplayRejection("approval already exists for hash %s", hash)
		}
	}

	fee := req.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}
	if fee.Sign() > 0 && req.FeeRecipient == (common.Address{}) {
		return common.Hash{}, types.NewPolicyRejection("fee recipient required when fee > 0")
	}
	if req.DeductFromAmount && fee.Cmp(req.Amount) > 0 {
		return common.Hash{}, types.NewPolicyRejection("fee %s exceeds amount %s on the deduct path",
			fee, req.Amount)
	}

	withdraw := &types.Withdraw{
		SrcChainKey: req.SrcChainKey,
		Token:       req.Token,
		DestAccount: req.DestAccount,
		To:          req.To,
		Amount:      new(big.Int).Set(req.Amount),
		Nonce:       req.Nonce,
	}
	c.withdraws[hash] = withdraw
	c.approvals[hash] = &types.WithdrawApproval{
		Fee:              new(big.Int).Set(fee),
		FeeRecipient:     req.FeeRecipient,
		ApprovedAt:       c.now(),
		IsApproved:       true,
		DeductFromAmount: req.DeductFromAmount,
	}
	c.usedNonces[key] = true

	log.Verbosef("withdraw approved, hash = %s, nonce = %d", hash, req.Nonce)
	c.emit(&types.WithdrawApproved{WithdrawHash: hash, Withdraw: withdraw})

	return hash, nil
}

// ExecuteWithdraw releases an approved withdraw once the delay has elapsed.
// Callable by anyone; attachedValue is the native value the caller sent along
// to cover the fee on the direct path.
func (c *Core) ExecuteWithdraw(caller common.Address, hash common.Hash, attachedValue *big.Int) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	approval := c.approvals[hash]
	if approval == nil || !approval.IsApproved {
		return types.NewTimingRejection("no approval for hash %s", hash)
	}
	if approval.Executed {
		return types.NewTimingRejection("hash %s already executed", hash)
	}
	if approval.Cancelled {
		return types.NewTimingRejection("hash %s is cancelled", hash)
	}

	now := c.now()
	readyAt := approval.ApprovedAt.Add(c.withdrawDelay)
	if now.Before(readyAt) {
		return types.NewTimingRejection("delay not elapsed for hash %s, ready at %s", hash, readyAt)
	}

	withdraw := c.withdraws[hash]
	if err := c.guard.CheckAccount(caller); err != nil {
		return err
	}
	if err := c.guard.CheckWithdraw(withdraw.To, withdraw.Token, withdraw.Amount); err != nil {
		return err
	}

	if attachedValue == nil {
		attachedValue = big.NewInt(0)
	}
	if approval.DeductFromAmount {
		// Unwrap path. The fee is carved out of the released amount, so any
		// attached value would be unaccounted for.
		if attachedValue.Sign() != 0 {
			return types.NewFeeRejection("deduct-from-amount path takes no attached value, got %s", attachedValue)
		}
	} else if attachedValue.Cmp(approval.Fee) < 0 {
		return types.NewFeeRejection("attached value %s below fee %s", attachedValue, approval.Fee)
	}

	bridgeType, err := c.registry.BridgeTypeOf(withdraw.Token)
	if err != nil {
		return err
	}
	mover, ok := c.movers[bridgeType]
	if !ok {
		return types.NewPolicyRejection("no mover registered for bridge type %s", bridgeType)
	}

	if err := c.limiter.CheckAndConsume(withdraw.Token, withdraw.Amount); err != nil {
		return err
	}

	// Committed before any side effect, closing the reentrancy window: a call
	// re-entering on the same hash sees Executed and fails above.
	approval.Executed = true

	reverted, err := c.release(mover, withdraw, approval, attachedValue)
	if err != nil {
		if !reverted {
			// Tokens already left the bridge and could not be taken back. The
			// approval stays executed so a retry can never pay the recipient
			// twice; the stuck fee payout needs an operator.
			log.Errorf("withdraw %s settled partially, fee payout stuck: %v", hash, err)
			return err
		}

		approval.Executed = false
		c.limiter.Refund(withdraw.Token, withdraw.Amount)
		return err
	}

	c.emit(&types.WithdrawRequest{WithdrawHash: hash, Withdraw: withdraw})
	c.emit(&types.WithdrawExecutedWithFee{
		WithdrawHash: hash,
		Fee:          approval.Fee,
		FeeRecipient: approval.FeeRecipient,
		Deducted:     approval.DeductFromAmount,
	})

	return nil
}

// release settles both payouts of one execute as a unit. The returned bool
// reports whether state is untouched on failure: when the fee payout fails
// after the recipient payout already landed, the recipient release is debited
// back so the caller can safely re-arm the approval. Only if that take-back
// also fails is the state reported as partially settled.
func (c *Core) release(mover TokenMover, withdraw *types.Withdraw,
	approval *types.WithdrawApproval, attachedValue *big.Int) (bool, error) {

	if approval.DeductFromAmount {
		released := new(big.Int).Sub(withdraw.Amount, approval.Fee)
		if err := mover.Release(withdraw.Token, withdraw.To, released); err != nil {
			return true, err
		}
		if approval.Fee.Sign() > 0 {
			if err := mover.Release(withdraw.Token, approval.FeeRecipient, approval.Fee); err != nil {
				return c.takeBack(mover, withdraw.Token, withdraw.To, released), err
			}
		}

		return true, nil
	}

	if err := mover.Release(withdraw.Token, withdraw.To, withdraw.Amount); err != nil {
		return true, err
	}

	// The entire attached value goes to the fee recipient. Overpayment is
	// forwarded whole, not refunded.
	if attachedValue.Sign() > 0 {
		if err := c.native.Transfer(approval.FeeRecipient, attachedValue); err != nil {
			return c.takeBack(mover, withdraw.Token, withdraw.To, withdraw.Amount), err
		}
	}

	return true, nil
}

// takeBack debits an already-released payout back from the recipient after a
// later step of the same execute failed.
func (c *Core) takeBack(mover TokenMover, token, from common.Address, amount *big.Int) bool {
	if err := mover.Debit(token, from, amount); err != nil {
		log.Errorf("cannot take back release of %s from %s, err = %v", amount, from, err)
		return false
	}

	return true
}

// CancelWithdrawApproval vetoes a pending approval. Canceler role only. There
// is no timing restriction: a cancel may race an execute, and whichever lands
// first wins.
func (c *Core) CancelWithdrawApproval(caller common.Address, hash common.Hash) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.cancelers[caller] {
		return types.NewPolicyRejection("caller %s lacks the canceler role", caller)
	}

	approval := c.approvals[hash]
	if approval == nil || !approval.IsApproved {
		return types.NewTimingRejection("no approval for hash %s", hash)
	}
	if approval.Executed {
		return types.NewTimingRejection("hash %s already executed", hash)
	}
	if approval.Cancelled {
		return types.NewTimingRejection("hash %s already cancelled", hash)
	}

	approval.Cancelled = true
	log.Infof("withdraw approval cancelled, hash = %s", hash)
	c.emit(&types.WithdrawApprovalCancelled{WithdrawHash: hash})

	return nil
}

// ReenableWithdrawApproval reverses a cancellation. Operator role only. The
// approval timestamp is reset so the full delay runs again from now; a
// cancellation is never instantly reversible.
func (c *Core) ReenableWithdrawApproval(caller common.Address, hash common.Hash) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.operators[caller] {
		return types.NewPolicyRejection("caller %s lacks the operator role", caller)
	}

	approval := c.approvals[hash]
	if approval == nil || !approval.IsApproved {
		return types.NewTimingRejection("no approval for hash %s", hash)
	}
	if approval.Executed {
		return types.NewTimingRejection("hash %s already executed", hash)
	}
	if !approval.Cancelled {
		return types.NewTimingRejection("hash %s is not cancelled", hash)
	}

	approval.Cancelled = false
	approval.ApprovedAt = c.now()
	log.Infof("withdraw approval reenabled, hash = %s", hash)
	c.emit(&types.WithdrawApprovalReenabled{WithdrawHash: hash})

	return nil
}

// GetWithdrawApproval returns a copy of the approval for hash, or nil.
func (c *Core) GetWithdrawApproval(hash common.Hash) *types.WithdrawApproval {
	c.lock.Lock()
	defer c.lock.Unlock()

	approval := c.approvals[hash]
	if approval == nil {
		return nil
	}

	cp := *approval
	cp.Fee = new(big.Int).Set(approval.Fee)
	return &cp
}

// GetWithdrawFromHash returns a copy of the withdraw payload for hash, or nil.
func (c *Core) GetWithdrawFromHash(hash common.Hash) *types.Withdraw {
	c.lock.Lock()
	defer c.lock.Unlock()

	withdraw := c.withdraws[hash]
	if withdraw == nil {
		return nil
	}

	cp := *withdraw
	cp.Amount = new(big.Int).Set(withdraw.Amount)
	return &cp
}

// GetDepositFromHash returns a copy of the deposit for hash, or nil.
func (c *Core) GetDepositFromHash(hash common.Hash) *types.Deposit {
	c.lock.Lock()
	defer c.lock.Unlock()

	deposit := c.deposits[hash]
	if deposit == nil {
		return nil
	}

	cp := *deposit
	cp.Amount = new(big.Int).Set(deposit.Amount)
	return &cp
}

// PendingApprovals lists approvals still inside their cancel window. This is
// an off-chain indexing convenience for cancelers.
func (c *Core) PendingApprovals() []*types.PendingApproval {
	c.lock.Lock()
	defer c.lock.Unlock()

	pending := make([]*types.PendingApproval, 0)
	for hash, approval := range c.approvals {
		if !approval.Pending() {
			continue
		}

		approvalCp := *approval
		approvalCp.Fee = new(big.Int).Set(approval.Fee)
		withdrawCp := *c.withdraws[hash]
		withdrawCp.Amount = new(big.Int).Set(withdrawCp.Amount)

		pending = append(pending, &types.PendingApproval{
			Hash:     hash,
			Withdraw: &withdrawCp,
			Approval: &approvalCp,
		})
	}

	return pending
}
