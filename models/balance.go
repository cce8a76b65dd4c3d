package models

import (
	"time"
)

// BalanceRecord is one (account, currency) balance row. Amount is a
// non-negative integer in minor units. Version increments by exactly one on
// every mutation and serves as the optimistic-concurrency token.
type BalanceRecord struct {
	AccountID int64     `db:"account_id"`
	Currency  Currency  `db:"currency"`
	Amount    int64     `db:"amount"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}
