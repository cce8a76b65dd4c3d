package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the transaction core. Services wrap these with
// fmt.Errorf("...: %w", err) and callers match with errors.Is.
var (
	// ErrInvalidInput covers malformed requests rejected before any check.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCurrency is returned for unknown or disallowed currency codes.
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPlatformNotEligible is returned when an operation or currency is not
	// permitted for the account's platform, e.g. a web-only account touching
	// a game currency.
	ErrPlatformNotEligible = errors.New("platform not eligible")

	// ErrCurrencyNotAllowed is the store-level form of the platform rule: the
	// account has no balance row for the currency and may never have one.
	ErrCurrencyNotAllowed = errors.New("currency not allowed for account")

	// ErrInsufficientFunds is returned when a debit would drive a balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrVersionConflict signals an optimistic-concurrency mismatch. The
	// engine retries these internally; callers never see them.
	ErrVersionConflict = errors.New("balance version conflict")

	// ErrNoRateConfigured is returned when no conversion rate row is
	// effective at the requested time.
	ErrNoRateConfigured = errors.New("no conversion rate configured")

	ErrAccountNotFound  = errors.New("account not found")
	ErrBalanceNotFound  = errors.New("balance not found")
	ErrAccountSuspended = errors.New("account suspended")

	// ErrStorageUnavailable wraps infrastructure failures; no partial state
	// is committed when it occurs.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCompensationFailed means a debited-but-not-credited state could not
	// be reversed. It is never swallowed; it is logged for manual
	// reconciliation and surfaced to the caller.
	ErrCompensationFailed = errors.New("compensation failed")

	// ErrDuplicateRequest is an internal signal that an idempotency key has
	// already been used; the engine resolves it to the stored result.
	ErrDuplicateRequest = errors.New("duplicate request")
)

// FraudDeniedError is returned when the fraud guard rejects a mutation. The
// reason surfaced to callers is opaque; full detail is logged internally.
type FraudDeniedError struct {
	Reason string
}

func (e *FraudDeniedError) Error() string {
	return fmt.Sprintf("fraud check denied: %s", e.Reason)
}

// RateLimitedError is returned when the token bucket for the request's
// subject and operation class is exhausted.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
