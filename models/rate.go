package models

import (
	"time"
)

// ConversionRate is one immutable row of the versioned rate table: how many
// rupiah one unit of a game currency is worth. Changing a rate inserts a new
// row with a later effective-from time; existing rows are never touched, so
// any historical conversion can be replayed with the rate it actually used.
type ConversionRate struct {
	ID            int64     `db:"id"`
	Currency      Currency  `db:"currency"`
	Rate          int64     `db:"rate"` // IDR per one unit of Currency
	EffectiveFrom time.Time `db:"effective_from"`
	Author        string    `db:"author"`
}
