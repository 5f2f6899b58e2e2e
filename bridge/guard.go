package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GuardChecker is the guard-chain pre-check interface. Implementations
// (blacklists, KYC policies) may reject an account or a transfer before the
// core runs. Only the check interface matters here; policy internals are
// external collaborators.
type GuardChecker interface {
	CheckAccount(account common.Address) error
	CheckDeposit(from, token common.Address, amount *big.Int) error
	CheckWithdraw(to, token common.Address, amount *big.Int) error
}

// NoopGuard accepts everything.
type NoopGuard struct{}

func (NoopGuard) CheckAccount(common.Address) error                            { return nil }
func (NoopGuard) CheckDeposit(common.Address, common.Address, *big.Int) error  { return nil }
func (NoopGuard) CheckWithdraw(common.Address, common.Address, *big.Int) error { return nil }

// GuardChain runs several checkers in order and stops at the first rejection.
type GuardChain []GuardChecker

func (g GuardChain) CheckAccount(account common.Address) error {
	for _, checker := range g {
		if err := checker.CheckAccount(account); err != nil {
			return err
		}
	}

	return nil
}

func (g GuardChain) CheckDeposit(from, token common.Address, amount *big.Int) error {
	for _, checker := range g {
		if err := checker.CheckDeposit(from, token, amount); err != nil {
			return err
		}
	}

	return nil
}

func (g GuardChain) CheckWithdraw(to, token common.Address, amount *big.Int) error {
	for _, checker := range g {
		if err := checker.CheckWithdraw(to, token, amount); err != nil {
			return err
		}
	}

	return nil
}
