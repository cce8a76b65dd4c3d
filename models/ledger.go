package models

import (
	"time"
)

// OperationKind classifies a balance-affecting operation in the audit log.
type OperationKind string

const (
	OperationDeposit            OperationKind = "deposit"
	OperationWithdraw           OperationKind = "withdraw"
	OperationTransferIn         OperationKind = "transfer_in"
	OperationTransferOut        OperationKind = "transfer_out"
	OperationConvertDebit       OperationKind = "convert_debit"
	OperationConvertCredit      OperationKind = "convert_credit"
	OperationConversionReversal OperationKind = "conversion_reversal"
	OperationPurchase           OperationKind = "purchase"
	OperationRefund             OperationKind = "refund"
	OperationAdjustment         OperationKind = "adjustment"
	OperationInitial            OperationKind = "initial"
)

// ActorKind identifies who caused a ledger entry.
type ActorKind string

const (
	ActorSystem  ActorKind = "system"
	ActorAdmin   ActorKind = "admin"
	ActorAccount ActorKind = "account"
)

// Actor is the identity attached to a ledger entry, e.g. "admin:fdy" or
// "account:1234".
type Actor struct {
	Kind ActorKind `db:"-"`
	ID   string    `db:"-"`
}

func (a Actor) String() string {
	return string(a.Kind) + ":" + a.ID
}

// SystemActor is the actor used for engine-initiated entries such as
// compensation reversals.
var SystemActor = Actor{Kind: ActorSystem, ID: "ledger"}

// LedgerEntry is one append-only audit record. Entries are never updated or
// deleted; the sum of Delta per (account, currency) equals the current
// balance amount.
type LedgerEntry struct {
	Sequence         int64         `db:"sequence"`
	AccountID        int64         `db:"account_id"`
	Operation        OperationKind `db:"operation"`
	Currency         Currency      `db:"currency"`
	Delta            int64         `db:"delta"`
	ResultingBalance int64         `db:"resulting_balance"`
	Actor            string        `db:"actor"`
	CorrelationID    string        `db:"correlation_id"`
	CreatedAt        time.Time     `db:"created_at"`
}
