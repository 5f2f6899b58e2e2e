package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status of an observed deposit in the durable store.
const (
	DepositStatusObserved = "observed" // durable, waiting for an approval
	DepositStatusApproved = "approved" // approval confirmed on the destination
	DepositStatusSkipped  = "skipped"  // permanently rejected, kept for audit
)

// ObservedDeposit is one row of the observed-deposits table, keyed by
// (SourceChain, Nonce). Upserts are idempotent so re-scanning a block range
// after a restart is a no-op.
type ObservedDeposit struct {
	SourceChain      string
	Nonce            uint64
	DepositHash      common.Hash
	DestChainKey     common.Hash
	DestTokenAddress common.Hash
	DestAccount      common.Hash
	From             string
	Amount           *big.Int
	BlockHeight      int64

	Status    string
	Attempts  int
	NextRetry int64 // unix seconds, 0 = ready now
	LastError string
}

// Status of a submitted approval in the durable store.
const (
	ApprovalStatusSubmitted = "submitted"
	ApprovalStatusConfirmed = "confirmed"
	ApprovalStatusRejected  = "rejected"
)

// SubmittedApproval is one row of the submitted-approvals table, keyed by
// (DestChain, WithdrawHash).
type SubmittedApproval struct {
	DestChain    string
	WithdrawHash common.Hash
	SourceChain  string
	Nonce        uint64

	Status    string
	Attempts  int
	NextRetry int64
	LastError string
}
