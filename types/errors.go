package types

import (
	"errors"
	"fmt"
	"strings"
)

type RejectKind int

const (
	RejectNone RejectKind = iota // no rejection
	// RejectPolicy: guard or rate-limit decline. The caller may retry with
	// different parameters but the call is never auto-retried.
	RejectPolicy
	// RejectReplay: nonce already used or hash already carries live terms.
	// Permanent for this (srcChainKey, nonce) pair.
	RejectReplay
	// RejectTiming: delay not elapsed, already cancelled or already executed.
	RejectTiming
	// RejectFee: attached value does not match the approval's fee terms.
	RejectFee
	// RejectTransient: RPC timeout or other infra failure on the off-chain
	// side. Retried with bounded backoff.
	RejectTransient
)

func (k RejectKind) String() string {
	switch k {
	case RejectPolicy:
		return "policy"
	case RejectReplay:
		return "replay"
	case RejectTiming:
		return "timing"
	case RejectFee:
		return "fee"
	case RejectTransient:
		return "transient"
	}

	return "none"
}

// Rejection is the error type returned by every bridge core entrypoint and by
// clients talking to a remote bridge. The kind decides retry behavior.
type Rejection struct {
	Kind RejectKind
	Msg  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejection: %s", r.Kind, r.Msg)
}

func NewPolicyRejection(format string, args ...interface{}) error {
	return &Rejection{Kind: RejectPolicy, Msg: fmt.Sprintf(format, args...)}
}

func NewReplayRejection(format string, args ...interface{}) error {
	return &Rejection{Kind: RejectReplay, Msg: fmt.Sprintf(format, args...)}
}

func NewTimingRejection(format string, args ...interface{}) error {
	return &Rejection{Kind: RejectTiming, Msg: fmt.Sprintf(format, args...)}
}

func NewFeeRejection(format string, args ...interface{}) error {
	return &Rejection{Kind: RejectFee, Msg: fmt.Sprintf(format, args...)}
}

func NewTransientError(format string, args ...interface{}) error {
	return &Rejection{Kind: RejectTransient, Msg: fmt.Sprintf(format, args...)}
}

func KindOf(err error) RejectKind {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind
	}

	return RejectNone
}

// KindFromMessage recovers the rejection kind from an error that crossed an
// rpc boundary as a plain string. The wire does not carry error codes, so we
// rely on the stable "<kind> rejection:" prefix the Rejection type formats.
func KindFromMessage(msg string) RejectKind {
	for _, kind := range []RejectKind{RejectPolicy, RejectReplay, RejectTiming, RejectFee, RejectTransient} {
		if strings.HasPrefix(msg, kind.String()+" rejection:") {
			return kind
		}
	}

	return RejectNone
}

// IsPermanentRejection reports whether err can never succeed for the same
// arguments. Workers use this to clear a queued item instead of retrying it.
func IsPermanentRejection(err error) bool {
	switch KindOf(err) {
	case RejectReplay, RejectTiming:
		return true
	}

	return false
}
