package bridge

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// TokenMover is the token-movement primitive for one bridge type. A mint/burn
// mover burns on Debit and mints on Release; a lock/unlock mover moves tokens
// in and out of a vault. Implementations are expected to verify balance
// deltas themselves and fail on a short transfer.
type TokenMover interface {
	Debit(token, from common.Address, amount *big.Int) error
	Release(token, to common.Address, amount *big.Int) error
}

// NativeTransferrer forwards attached native value, used for fee settlement
// on the direct-token path.
type NativeTransferrer interface {
	Transfer(to common.Address, amount *big.Int) error
}

// Ledger is an in-memory token ledger backing the LedgerMover implementations
// and the native transferrer. It serves local deployments and tests; real
// deployments plug chain-backed movers instead.
type Ledger struct {
	lock     *sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int // token -> account -> balance
}

func NewLedger() *Ledger {
	return &Ledger{
		lock:     &sync.Mutex{},
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) BalanceOf(token, account common.Address) *big.Int {
	l.lock.Lock()
	defer l.lock.Unlock()

	return new(big.Int).Set(l.balance(token, account))
}

func (l *Ledger) Mint(token, account common.Address, amount *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	bal := l.balance(token, account)
	bal.Add(bal, amount)
}

func (l *Ledger) burn(token, account common.Address, amount *big.Int) error {
	bal := l.balance(token, account)
	if bal.Cmp(amount) < 0 {
		return types.NewPolicyRejection("account %s has %s of token %s, needs %s",
			account, bal, token, amount)
	}

	bal.Sub(bal, amount)
	return nil
}

func (l *Ledger) balance(token, account common.Address) *big.Int {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}

	bal, ok := accounts[account]
	if !ok {
		bal = big.NewInt(0)
		accounts[account] = bal
	}

	return bal
}

// MintBurnMover destroys tokens on debit and creates them on release.
type MintBurnMover struct {
	ledger *Ledger
}

func NewMintBurnMover(ledger *Ledger) *MintBurnMover {
	return &MintBurnMover{ledger: ledger}
}

func (m *MintBurnMover) Debit(token, from common.Address, amount *big.Int) error {
	m.ledger.lock.Lock()
	defer m.ledger.lock.Unlock()

	return m.ledger.burn(token, from, amount)
}

func (m *MintBurnMover) Release(token, to common.Address, amount *big.Int) error {
	m.ledger.lock.Lock()
	defer m.ledger.lock.Unlock()

	bal := m.ledger.balance(token, to)
	bal.Add(bal, amount)
	return nil
}

// LockUnlockMover escrows tokens in a vault account on debit and pays out of
// it on release. A release larger than the vault balance fails rather than
// short-transferring.
type LockUnlockMover struct {
	ledger *Ledger
	vault  common.Address
}

func NewLockUnlockMover(ledger *Ledger, vault common.Address) *LockUnlockMover {
	return &LockUnlockMover{ledger: ledger, vault: vault}
}

func (m *LockUnlockMover) Debit(token, from common.Address, amount *big.Int) error {
	m.ledger.lock.Lock()
	defer m.ledger.lock.Unlock()

	if err := m.ledger.burn(token, from, amount); err != nil {
		return err
	}

	vaultBal := m.ledger.balance(token, m.vault)
	vaultBal.Add(vaultBal, amount)
	return nil
}

func (m *LockUnlockMover) Release(token, to common.Address, amount *big.Int) error {
	m.ledger.lock.Lock()
	defer m.ledger.lock.Unlock()

	if err := m.ledger.burn(token, m.vault, amount); err != nil {
		return err
	}

	bal := m.ledger.balance(token, to)
	bal.Add(bal, amount)
	return nil
}

// NativeLedger tracks native-coin balances for fee forwarding.
type NativeLedger struct {
	ledger *Ledger
}

// nativeToken is the pseudo token address under which native balances live.
var nativeToken = common.Address{}

func NewNativeLedger(ledger *Ledger) *NativeLedger {
	return &NativeLedger{ledger: ledger}
}

func (n *NativeLedger) Transfer(to common.Address, amount *big.Int) error {
	n.ledger.Mint(nativeToken, to, amount)
	return nil
}

func (n *NativeLedger) BalanceOf(account common.Address) *big.Int {
	return n.ledger.BalanceOf(nativeToken, account)
}
