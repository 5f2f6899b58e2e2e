package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BridgeType selects how a token crosses the bridge. It is chosen once per
// token at registration time and never changes afterwards.
type BridgeType int

const (
	BridgeTypeMintBurn BridgeType = iota
	BridgeTypeLockUnlock
)

func (b BridgeType) String() string {
	switch b {
	case BridgeTypeMintBurn:
		return "mint_burn"
	case BridgeTypeLockUnlock:
		return "lock_unlock"
	}

	return "unknown"
}

// ParseBridgeType maps a config string to a bridge type. The empty string
// defaults to mint_burn.
func ParseBridgeType(s string) (BridgeType, bool) {
	switch s {
	case "", "mint_burn":
		return BridgeTypeMintBurn, true
	case "lock_unlock":
		return BridgeTypeLockUnlock, true
	}

	return BridgeTypeMintBurn, false
}

// Deposit is the source-side record of a transfer. It is created exactly once
// by the bridge core, keyed permanently by its transfer id, and never mutated.
type Deposit struct {
	DestChainKey     common.Hash    `json:"dest_chain_key"`
	DestTokenAddress common.Hash    `json:"dest_token_address"`
	DestAccount      common.Hash    `json:"dest_account"`
	From             common.Address `json:"from"`
	Amount           *big.Int       `json:"amount"`
	Nonce            uint64         `json:"nonce"`
}

// Withdraw is the destination-side payload stored alongside an approval so
// that execution later needs nothing but the withdraw hash.
type Withdraw struct {
	SrcChainKey common.Hash    `json:"src_chain_key"`
	Token       common.Address `json:"token"`
	DestAccount common.Hash    `json:"dest_account"`
	To          common.Address `json:"to"`
	Amount      *big.Int       `json:"amount"`
	Nonce       uint64         `json:"nonce"`
}

// WithdrawApproval tracks the lifecycle of one withdraw hash:
// NotApproved -> Approved -> {Cancelled <-> Approved} -> Executed (terminal).
type WithdrawApproval struct {
	Fee              *big.Int       `json:"fee"`
	FeeRecipient     common.Address `json:"fee_recipient"`
	ApprovedAt       time.Time      `json:"approved_at"`
	IsApproved       bool           `json:"is_approved"`
	DeductFromAmount bool           `json:"deduct_from_amount"`
	Cancelled        bool           `json:"cancelled"`
	Executed         bool           `json:"executed"`
}

// Pending reports whether this approval is still waiting in the cancel
// window, i.e. it can still be vetoed or executed.
func (a *WithdrawApproval) Pending() bool {
	return a.IsApproved && !a.Cancelled && !a.Executed
}

// ApproveRequest carries the full argument list of an approve_withdraw call
// from the approval writer to the destination bridge.
type ApproveRequest struct {
	SrcChainKey      common.Hash    `json:"src_chain_key"`
	Token            common.Address `json:"token"`
	To               common.Address `json:"to"`
	DestAccount      common.Hash    `json:"dest_account"`
	Amount           *big.Int       `json:"amount"`
	Nonce            uint64         `json:"nonce"`
	Fee              *big.Int       `json:"fee"`
	FeeRecipient     common.Address `json:"fee_recipient"`
	DeductFromAmount bool           `json:"deduct_from_amount"`
}

// PendingApproval pairs a withdraw hash with its stored payload and approval
// state. This is what cancelers fetch from a destination chain.
type PendingApproval struct {
	Hash     common.Hash       `json:"hash"`
	Withdraw *Withdraw         `json:"withdraw"`
	Approval *WithdrawApproval `json:"approval"`
}

// TokenInfo is the registry entry resolved at deposit time for a
// (token, destination chain) pair.
type TokenInfo struct {
	DestTokenAddress common.Hash `json:"dest_token_address"`
	DestDecimals     uint8       `json:"dest_decimals"`
	BridgeType       BridgeType  `json:"bridge_type"`
}
