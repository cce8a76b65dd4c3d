package models

import (
	"time"
)

// OperationClass groups operation kinds for rate limiting. Deposits and
// withdrawals share a class with purchases; conversions are classed on their
// own because they touch two balances.
type OperationClass string

const (
	ClassMutation   OperationClass = "mutation"
	ClassConversion OperationClass = "conversion"
	ClassTransfer   OperationClass = "transfer"
)

// ClassFor maps an operation kind onto its rate-limit class.
func ClassFor(op OperationKind) OperationClass {
	switch op {
	case OperationConvertDebit, OperationConvertCredit, OperationConversionReversal:
		return ClassConversion
	case OperationTransferIn, OperationTransferOut:
		return ClassTransfer
	default:
		return ClassMutation
	}
}

// TransactionRequest is a normalized balance-affecting request. The routing
// layer has already authenticated the caller; the engine trusts the account
// platform as stored.
type TransactionRequest struct {
	AccountID      int64
	Operation      OperationKind
	Currency       Currency
	Amount         int64
	CounterpartyID int64 // recipient account for transfers, zero otherwise
	IdempotencyKey string
	Actor          Actor
	SourceIP       string // rate-limit subject for unauthenticated surfaces
}

// TransactionResult is returned on success for every operation kind.
type TransactionResult struct {
	Operation      OperationKind `json:"operation"`
	Currency       Currency      `json:"currency"`
	NewBalance     int64         `json:"new_balance"`
	NewVersion     int64         `json:"new_version"`
	Sequence       int64         `json:"sequence"`
	CorrelationID  string        `json:"correlation_id"`
	FiatCredited   int64         `json:"fiat_credited,omitempty"` // set for conversions
	RateUsed       int64         `json:"rate_used,omitempty"`
	RateID         int64         `json:"rate_id,omitempty"`
	NewFiatBalance int64         `json:"new_fiat_balance,omitempty"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// ConversionResult describes a completed currency-to-fiat conversion.
type ConversionResult struct {
	FiatCredited     int64
	RateUsed         int64
	RateID           int64
	NewSourceBalance int64
	NewFiatBalance   int64
	CorrelationID    string
}

// TransactionState is the engine's per-request state machine position.
type TransactionState string

const (
	StateReceived     TransactionState = "received"
	StateFraudChecked TransactionState = "fraud_checked"
	StateRateLimited  TransactionState = "rate_limited"
	StateMutated      TransactionState = "mutated"
	StateAudited      TransactionState = "audited"
	StateCompleted    TransactionState = "completed"
	StateRejected     TransactionState = "rejected"
	StateCompensating TransactionState = "compensating"
	StateFailed       TransactionState = "failed"
)

// IdempotencyRecord stores the result of a completed request keyed by the
// caller-supplied idempotency key. A repeated key within the retention
// window returns the stored result without re-mutating balances.
type IdempotencyRecord struct {
	Key       string        `db:"key"`
	AccountID int64         `db:"account_id"`
	Operation OperationKind `db:"operation"`
	Result    []byte        `db:"result"` // serialized TransactionResult
	CreatedAt time.Time     `db:"created_at"`
}
