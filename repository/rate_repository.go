package repository

import (
	"context"
	"fmt"
	"time"

	"lockbank/database"
	"lockbank/models"

	"github.com/jackc/pgx/v5"
)

// RateRepository implements the RateRepository interface
type RateRepository struct {
	q queryable
}

// NewRateRepository creates a new conversion rate repository
func NewRateRepository(db *database.DB) *RateRepository {
	return &RateRepository{q: db.Pool}
}

// newRateRepositoryWithTx creates a new conversion rate repository with a transaction
func newRateRepositoryWithTx(tx queryable) *RateRepository {
	return &RateRepository{q: tx}
}

// Insert appends a new immutable rate row. Existing rows are never mutated;
// the latest effective-from row wins at lookup time.
func (r *RateRepository) Insert(ctx context.Context, currency models.Currency, rate int64, author string) (*models.ConversionRate, error) {
	query := `
		INSERT INTO conversion_rates (currency, rate, author)
		VALUES ($1, $2, $3)
		RETURNING id, currency, rate, effective_from, author
	`

	var row models.ConversionRate
	err := r.q.QueryRow(ctx, query, currency, rate, author).Scan(
		&row.ID,
		&row.Currency,
		&row.Rate,
		&row.EffectiveFrom,
		&row.Author,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s rate: %w", currency, err)
	}

	return &row, nil
}

// CurrentRate returns the rate row effective at asOf: the latest row with
// effective_from <= asOf.
func (r *RateRepository) CurrentRate(ctx context.Context, currency models.Currency, asOf time.Time) (*models.ConversionRate, error) {
	query := `
		SELECT id, currency, rate, effective_from, author
		FROM conversion_rates
		WHERE currency = $1 AND effective_from <= $2
		ORDER BY effective_from DESC, id DESC
		LIMIT 1
	`

	var row models.ConversionRate
	err := r.q.QueryRow(ctx, query, currency, asOf).Scan(
		&row.ID,
		&row.Currency,
		&row.Rate,
		&row.EffectiveFrom,
		&row.Author,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%s as of %s: %w", currency, asOf.Format(time.RFC3339), models.ErrNoRateConfigured)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current %s rate: %w", currency, err)
	}

	return &row, nil
}

// History returns rate rows for a currency, newest first
func (r *RateRepository) History(ctx context.Context, currency models.Currency, limit int) ([]*models.ConversionRate, error) {
	query := `
		SELECT id, currency, rate, effective_from, author
		FROM conversion_rates
		WHERE currency = $1
		ORDER BY effective_from DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, currency, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s rate history: %w", currency, err)
	}
	defer rows.Close()

	var history []*models.ConversionRate
	for rows.Next() {
		var row models.ConversionRate
		err := rows.Scan(
			&row.ID,
			&row.Currency,
			&row.Rate,
			&row.EffectiveFrom,
			&row.Author,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate row: %w", err)
		}
		history = append(history, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rate history: %w", err)
	}

	return history, nil
}
