package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a notification emitted by the bridge core. Watchers and cancelers
// consume these; the core never blocks on a slow consumer.
type Event interface {
	Name() string
}

// DepositRequest is emitted when a deposit is recorded on the source side.
type DepositRequest struct {
	DepositHash common.Hash
	Deposit     *Deposit
}

func (e *DepositRequest) Name() string { return "DepositRequest" }

// WithdrawApproved is emitted when the approver creates a new approval.
type WithdrawApproved struct {
	WithdrawHash common.Hash
	Withdraw     *Withdraw
}

func (e *WithdrawApproved) Name() string { return "WithdrawApproved" }

type WithdrawApprovalCancelled struct {
	WithdrawHash common.Hash
}

func (e *WithdrawApprovalCancelled) Name() string { return "WithdrawApprovalCancelled" }

type WithdrawApprovalReenabled struct {
	WithdrawHash common.Hash
}

func (e *WithdrawApprovalReenabled) Name() string { return "WithdrawApprovalReenabled" }

// WithdrawRequest is emitted when an approved withdraw is executed and the
// token release is dispatched.
type WithdrawRequest struct {
	WithdrawHash common.Hash
	Withdraw     *Withdraw
}

func (e *WithdrawRequest) Name() string { return "WithdrawRequest" }

// WithdrawExecutedWithFee reports the fee settlement of an execution.
type WithdrawExecutedWithFee struct {
	WithdrawHash common.Hash
	Fee          *big.Int
	FeeRecipient common.Address
	// Deducted is true when the fee was carved out of the released amount
	// instead of being paid via attached value.
	Deducted bool
}

func (e *WithdrawExecutedWithFee) Name() string { return "WithdrawExecutedWithFee" }
