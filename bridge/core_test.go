package bridge

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

var (
	testSrcChain  = transfer.EVMChainKey(big.NewInt(56))
	testDestChain = transfer.EVMChainKey(big.NewInt(1))

	testOperator = common.HexToAddress("0x01")
	testApprover = common.HexToAddress("0x02")
	testCanceler = common.HexToAddress("0x03")
	testPayer    = common.HexToAddress("0x04")
	testTo       = common.HexToAddress("0x05")
	testFeeAddr  = common.HexToAddress("0x06")
	testToken    = common.HexToAddress("0x07")
	testVault    = common.HexToAddress("0x08")
)

type testEnv struct {
	core   *Core
	ledger *Ledger
	native *NativeLedger
	clock  time.Time
}

func newTestEnv(t *testing.T, delay time.Duration) *testEnv {
	registry := NewInMemoryRegistry()
	registry.Register(testToken, testDestChain, &types.TokenInfo{
		DestTokenAddress: transfer.EncodeEVMAddress(testToken),
		DestDecimals:     18,
		BridgeType:       types.BridgeTypeMintBurn,
	})

	ledger := NewLedger()
	native := NewNativeLedger(ledger)

	core := NewCore(testDestChain, delay, registry, NoopGuard{}, NewRateLimiter(), native, testOperator)
	core.RegisterMover(types.BridgeTypeMintBurn, NewMintBurnMover(ledger))
	core.RegisterMover(types.BridgeTypeLockUnlock, NewLockUnlockMover(ledger, testVault))

	require.Nil(t, core.GrantApprover(testOperator, testApprover))
	require.Nil(t, core.GrantCanceler(testOperator, testCanceler))

	env := &testEnv{core: core, ledger: ledger, native: native, clock: time.Unix(1700000000, 0)}
	core.now = func() time.Time { return env.clock }
	core.limiter.now = core.now

	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.clock = env.clock.Add(d)
}

func approveReq(amount, fee int64, deduct bool) *types.ApproveRequest {
	return &types.ApproveRequest{
		SrcChainKey:      testSrcChain,
		Token:            testToken,
		To:               testTo,
		DestAccount:      transfer.EncodeEVMAddress(testTo),
		Amount:           big.NewInt(amount),
		Nonce:            0,
		Fee:              big.NewInt(fee),
		FeeRecipient:     testFeeAddr,
		DeductFromAmount: deduct,
	}
}

func TestCore_Deposit(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.ledger.Mint(testToken, testPayer, big.NewInt(1000))

	hash, err := env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(400))
	require.Nil(t, err)

	deposit := env.core.GetDepositFromHash(hash)
	require.NotNil(t, deposit)
	require.Equal(t, uint64(0), deposit.Nonce)
	require.Equal(t, big.NewInt(400), deposit.Amount)
	require.Equal(t, big.NewInt(600), env.ledger.BalanceOf(testToken, testPayer))

	// The deposit hash matches the canonical transfer id.
	require.Equal(t, transfer.ID(testDestChain, testDestChain, transfer.EncodeEVMAddress(testToken),
		transfer.EncodeEVMAddress(testTo), big.NewInt(400), 0), hash)

	// Nonce increments per deposit.
	hash2, err := env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(400))
	require.Nil(t, err)
	require.NotEqual(t, hash, hash2)
	require.Equal(t, uint64(1), env.core.GetDepositFromHash(hash2).Nonce)
}

func TestCore_Deposit_DebitFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	// Payer has no balance, so the burn fails.
	_, err := env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(400))
	require.NotNil(t, err)

	// The failed call must not consume the nonce.
	env.ledger.Mint(testToken, testPayer, big.NewInt(400))
	hash, err := env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(400))
	require.Nil(t, err)
	require.Equal(t, uint64(0), env.core.GetDepositFromHash(hash).Nonce)
}

func TestCore_Deposit_UnknownRoute(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	otherChain := transfer.CosmosChainKey("cosmoshub-4")

	_, err := env.core.Deposit(testPayer, testToken, otherChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(1))
	require.Equal(t, types.RejectPolicy, types.KindOf(err))
}

func TestCore_ApproveWithdraw_Replay(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	_, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Nil(t, err)

	// Same (srcChainKey, nonce) can never be approved twice, regardless of
	// the other fields.
	req := approveReq(999, 0, false)
	_, err = env.core.ApproveWithdraw(testApprover, req)
	require.Equal(t, types.RejectReplay, types.KindOf(err))

	// A different nonce is fine.
	req = approveReq(100, 0, false)
	req.Nonce = 1
	_, err = env.core.ApproveWithdraw(testApprover, req)
	require.Nil(t, err)
}

func TestCore_ApproveWithdraw_RoleAndParams(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	_, err := env.core.ApproveWithdraw(testPayer, approveReq(100, 0, false))
	require.Equal(t, types.RejectPolicy, types.KindOf(err))

	// fee > 0 requires a fee recipient.
	req := approveReq(100, 10, false)
	req.FeeRecipient = common.Address{}
	_, err = env.core.ApproveWithdraw(testApprover, req)
	require.Equal(t, types.RejectPolicy, types.KindOf(err))

	// Deduct path cannot carve a fee larger than the amount.
	req = approveReq(100, 101, true)
	_, err = env.core.ApproveWithdraw(testApprover, req)
	require.Equal(t, types.RejectPolicy, types.KindOf(err))
}

func TestCore_ExecuteWithdraw_DelayWindow(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Nil(t, err)

	err = env.core.ExecuteWithdraw(testPayer, hash, nil)
	require.Equal(t, types.RejectTiming, types.KindOf(err))

	env.advance(59 * time.Second)
	err = env.core.ExecuteWithdraw(testPayer, hash, nil)
	require.Equal(t, types.RejectTiming, types.KindOf(err))

	env.advance(time.Second)
	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, nil))
	require.Equal(t, big.NewInt(100), env.ledger.BalanceOf(testToken, testTo))

	// Executed is terminal.
	err = env.core.ExecuteWithdraw(testPayer, hash, nil)
	require.Equal(t, types.RejectTiming, types.KindOf(err))
	err = env.core.CancelWithdrawApproval(testCanceler, hash)
	require.Equal(t, types.RejectTiming, types.KindOf(err))
}

func TestCore_ExecuteWithdraw_DirectFee(t *testing.T) {
	env := newTestEnv(t, 0)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 10, false))
	require.Nil(t, err)

	// Underpaying the fee is a fee mismatch.
	err = env.core.ExecuteWithdraw(testPayer, hash, big.NewInt(9))
	require.Equal(t, types.RejectFee, types.KindOf(err))

	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, big.NewInt(10)))
	require.Equal(t, big.NewInt(100), env.ledger.BalanceOf(testToken, testTo))
	require.Equal(t, big.NewInt(10), env.native.BalanceOf(testFeeAddr))
}

func TestCore_ExecuteWithdraw_OverpaymentForwardedWhole(t *testing.T) {
	env := newTestEnv(t, 0)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 10, false))
	require.Nil(t, err)

	// Intentional: overpayment goes to the fee recipient in full.
	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, big.NewInt(25)))
	require.Equal(t, big.NewInt(25), env.native.BalanceOf(testFeeAddr))
}

func TestCore_ExecuteWithdraw_DeductFee(t *testing.T) {
	env := newTestEnv(t, 0)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 10, true))
	require.Nil(t, err)

	// The deduct path takes no attached value.
	err = env.core.ExecuteWithdraw(testPayer, hash, big.NewInt(1))
	require.Equal(t, types.RejectFee, types.KindOf(err))

	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, nil))
	require.Equal(t, big.NewInt(90), env.ledger.BalanceOf(testToken, testTo))
	require.Equal(t, big.NewInt(10), env.ledger.BalanceOf(testToken, testFeeAddr))
}

func TestCore_ExecuteWithdraw_ShortVaultRollsBack(t *testing.T) {
	env := newTestEnv(t, 0)

	lockToken := common.HexToAddress("0x09")
	env.core.registry.(*InMemoryRegistry).Register(lockToken, testDestChain, &types.TokenInfo{
		DestTokenAddress: transfer.EncodeEVMAddress(lockToken),
		DestDecimals:     18,
		BridgeType:       types.BridgeTypeLockUnlock,
	})

	req := approveReq(100, 10, true)
	req.Token = lockToken
	hash, err := env.core.ApproveWithdraw(testApprover, req)
	require.Nil(t, err)

	// The vault covers the recipient payout but not the fee payout.
	env.ledger.Mint(lockToken, testVault, big.NewInt(95))
	err = env.core.ExecuteWithdraw(testPayer, hash, nil)
	require.NotNil(t, err)

	// Nothing moved: the recipient payout was taken back when the fee payout
	// failed, and the approval is executable again.
	require.Equal(t, big.NewInt(0), env.ledger.BalanceOf(lockToken, testTo))
	require.Equal(t, big.NewInt(95), env.ledger.BalanceOf(lockToken, testVault))

	env.ledger.Mint(lockToken, testVault, big.NewInt(5))
	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, nil))

	// The recipient is paid exactly once across both attempts.
	require.Equal(t, big.NewInt(90), env.ledger.BalanceOf(lockToken, testTo))
	require.Equal(t, big.NewInt(10), env.ledger.BalanceOf(lockToken, testFeeAddr))
	require.Equal(t, big.NewInt(0), env.ledger.BalanceOf(lockToken, testVault))
}

func TestCore_CancelThenReenable(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Nil(t, err)

	require.Nil(t, env.core.CancelWithdrawApproval(testCanceler, hash))

	// Cancelled approvals cannot execute even after the delay.
	env.advance(2 * time.Minute)
	err = env.core.ExecuteWithdraw(testPayer, hash, nil)
	require.Equal(t, types.RejectTiming, types.KindOf(err))

	// A duplicate cancel fails its precondition.
	err = env.core.CancelWithdrawApproval(testCanceler, hash)
	require.Equal(t, types.RejectTiming, types.KindOf(err))

	// Reenable restarts the full delay from now, not from the original
	// approval time.
	require.Nil(t, env.core.ReenableWithdrawApproval(testOperator, hash))
	err = env.core.ExecuteWithdraw(testPayer, hash, nil)
	require.Equal(t, types.RejectTiming, types.KindOf(err))

	env.advance(time.Minute)
	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, nil))
}

func TestCore_ReenableRequiresCancelled(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Nil(t, err)

	err = env.core.ReenableWithdrawApproval(testOperator, hash)
	require.Equal(t, types.RejectTiming, types.KindOf(err))

	require.Nil(t, env.core.CancelWithdrawApproval(testCanceler, hash))
	err = env.core.ReenableWithdrawApproval(testCanceler, hash)
	require.Equal(t, types.RejectPolicy, types.KindOf(err))
}

func TestCore_PendingApprovals(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Nil(t, err)

	pending := env.core.PendingApprovals()
	require.Equal(t, 1, len(pending))
	require.Equal(t, hash, pending[0].Hash)
	require.Equal(t, big.NewInt(100), pending[0].Withdraw.Amount)

	require.Nil(t, env.core.CancelWithdrawApproval(testCanceler, hash))
	require.Equal(t, 0, len(env.core.PendingApprovals()))
}

func TestCore_Events(t *testing.T) {
	env := newTestEnv(t, 0)
	env.ledger.Mint(testToken, testPayer, big.NewInt(100))

	_, err := env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(100))
	require.Nil(t, err)

	hash, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Nil(t, err)
	require.Nil(t, env.core.ExecuteWithdraw(testPayer, hash, nil))

	names := make([]string, 0)
	for i := 0; i < 4; i++ {
		event := <-env.core.Events()
		names = append(names, event.Name())
	}

	require.Equal(t, []string{
		"DepositRequest", "WithdrawApproved", "WithdrawRequest", "WithdrawExecutedWithFee",
	}, names)
}

func TestCore_SetWithdrawDelay(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	err := env.core.SetWithdrawDelay(testApprover, time.Hour)
	require.Equal(t, types.RejectPolicy, types.KindOf(err))

	require.Nil(t, env.core.SetWithdrawDelay(testOperator, time.Hour))
	require.Equal(t, time.Hour, env.core.WithdrawDelay())
}

func TestCore_RevokedApproverFails(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	require.Nil(t, env.core.RevokeApprover(testOperator, testApprover))
	_, err := env.core.ApproveWithdraw(testApprover, approveReq(100, 0, false))
	require.Equal(t, types.RejectPolicy, types.KindOf(err))

	// Cancelers are unaffected by approver revocation.
	hash := common.HexToHash("0x01")
	err = env.core.CancelWithdrawApproval(testCanceler, hash)
	require.Equal(t, types.RejectTiming, types.KindOf(err))
}

func TestCore_RateLimitOnDeposit(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.ledger.Mint(testToken, testPayer, big.NewInt(10000))
	env.core.limiter.SetLimit(testToken, TokenLimit{MaxPerTransaction: big.NewInt(500)})

	_, err := env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(501))
	require.Equal(t, types.RejectPolicy, types.KindOf(err))

	_, err = env.core.Deposit(testPayer, testToken, testDestChain,
		transfer.EncodeEVMAddress(testTo), big.NewInt(500))
	require.Nil(t, err)
}
