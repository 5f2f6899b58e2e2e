package bridge

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// RateLimitPeriod is the fixed quota window. Shorter configurable periods are
// deliberately not supported.
const RateLimitPeriod = 24 * time.Hour

// TokenLimit holds the per-token caps. A nil cap means unlimited.
type TokenLimit struct {
	MaxPerTransaction *big.Int
	MaxPerPeriod      *big.Int
}

type usageWindow struct {
	windowStart time.Time
	used        *big.Int
}

// RateLimiter enforces per-token caps over a rolling window anchored to the
// first use after expiry, not to the clock. It is not safe for concurrent use
// on its own; the core serializes all calls under its own lock.
type RateLimiter struct {
	limits  map[common.Address]TokenLimit
	windows map[common.Address]*usageWindow

	now func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limits:  make(map[common.Address]TokenLimit),
		windows: make(map[common.Address]*usageWindow),
		now:     time.Now,
	}
}

func (r *RateLimiter) SetLimit(token common.Address, limit TokenLimit) {
	r.limits[token] = limit
}

// CheckAndConsume validates amount against both caps and, on success, adds it
// to the current window. Tokens with no configured limit are unlimited.
func (r *RateLimiter) CheckAndConsume(token common.Address, amount *big.Int) error {
	limit, ok := r.limits[token]
	if !ok {
		return nil
	}

	if limit.MaxPerTransaction != nil && amount.Cmp(limit.MaxPerTransaction) > 0 {
		return types.NewPolicyRejection("amount %s exceeds per-transaction cap %s for token %s",
			amount, limit.MaxPerTransaction, token)
	}

	if limit.MaxPerPeriod == nil {
		return nil
	}

	now := r.now()
	window := r.windows[token]
	if window == nil {
		window = &usageWindow{windowStart: now, used: big.NewInt(0)}
		r.windows[token] = window
	} else if now.After(window.windowStart.Add(RateLimitPeriod)) {
		// Roll forward on first touch strictly after expiry.
		window.windowStart = now
		window.used = big.NewInt(0)
	}

	newUsed := new(big.Int).Add(window.used, amount)
	if newUsed.Cmp(limit.MaxPerPeriod) > 0 {
		return types.NewPolicyRejection("amount %s would exceed period cap %s for token %s, used %s",
			amount, limit.MaxPerPeriod, token, window.used)
	}

	window.used = newUsed
	return nil
}

// Refund returns consumed quota when the mutation it was reserved for is
// reverted.
func (r *RateLimiter) Refund(token common.Address, amount *big.Int) {
	window := r.windows[token]
	if window == nil {
		return
	}

	window.used = new(big.Int).Sub(window.used, amount)
	if window.used.Sign() < 0 {
		window.used = big.NewInt(0)
	}
}
