package service

import (
	"context"
	"time"

	"lockbank/models"
)

// rateTable is the read side of the versioned rate table, served straight
// from the pool-backed repository.
type rateTable struct {
	rates RateRepository
}

// NewRateTable creates a rate table over the given repository
func NewRateTable(rates RateRepository) RateTable {
	return &rateTable{rates: rates}
}

func (t *rateTable) CurrentRate(ctx context.Context, currency models.Currency, asOf time.Time) (*models.ConversionRate, error) {
	return t.rates.CurrentRate(ctx, currency, asOf)
}
