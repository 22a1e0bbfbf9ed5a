package service

import (
	"errors"
	"fmt"
	"time"

	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/metrics"
	"smash-rewards/internal/model"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is; callers map kinds to user-facing responses.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotEligible      = errors.New("not eligible")
	ErrNotFound         = errors.New("not found")
	ErrReferralNotFound = errors.New("invalid code")
	ErrUpstream         = errors.New("upstream failure")
)

// kindError carries a user-facing message and unwraps to its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Specific errors.
var (
	ErrInvalidCode     = newError(ErrInvalidInput, "referral code must be 5 letters or digits")
	ErrInvalidUsername = newError(ErrInvalidInput, "username must be at least 3 letters, digits or underscores")
	ErrInvalidAddress  = newError(ErrInvalidInput, "invalid wallet address")
	ErrInvalidTxHash   = newError(ErrInvalidInput, "invalid transaction hash")
	ErrInvalidScore    = newError(ErrInvalidInput, "quiz score out of range")
	ErrInvalidOutcome  = newError(ErrInvalidInput, "unknown ad outcome")
	ErrInvalidReward   = newError(ErrInvalidInput, "reward must not be negative")
	ErrInvalidRanking  = newError(ErrInvalidInput, "unknown ranking")

	ErrAlreadyActivated   = newError(ErrNotEligible, "account already activated")
	ErrNotActivated       = newError(ErrNotEligible, "account not activated")
	ErrWalletRequired     = newError(ErrNotEligible, "connect a wallet first")
	ErrPaymentNotVerified = newError(ErrNotEligible, "mining fee payment not verified")
	ErrPaymentReused      = newError(ErrNotEligible, "transaction already used for mining")
	ErrBusy               = newError(ErrNotEligible, "another request for this account is in progress")

	ErrAccountNotFound = newError(ErrNotFound, "account not found")
)

// GateError is returned when an eligibility gate refuses an action.
type GateError struct {
	Action    model.ActionKind
	Reason    eligibility.Reason
	Remaining time.Duration
}

func (e *GateError) Error() string { return string(e.Reason) }
func (e *GateError) Unwrap() error { return ErrNotEligible }

func gateError(action model.ActionKind, d eligibility.Decision) error {
	metrics.GateRejections.WithLabelValues(string(action), string(d.Reason)).Inc()
	return &GateError{Action: action, Reason: d.Reason, Remaining: d.Remaining}
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
