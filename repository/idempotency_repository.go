package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lockbank/database"
	"lockbank/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IdempotencyRepository implements the IdempotencyRepository interface
type IdempotencyRepository struct {
	q queryable
}

// NewIdempotencyRepository creates a new idempotency key repository
func NewIdempotencyRepository(db *database.DB) *IdempotencyRepository {
	return &IdempotencyRepository{q: db.Pool}
}

// newIdempotencyRepositoryWithTx creates a new idempotency key repository with a transaction
func newIdempotencyRepositoryWithTx(tx queryable) *IdempotencyRepository {
	return &IdempotencyRepository{q: tx}
}

// Get returns the stored record for a key, or nil if the key is unused or
// older than the retention cutoff.
func (r *IdempotencyRepository) Get(ctx context.Context, key string, notBefore time.Time) (*models.IdempotencyRecord, error) {
	query := `
		SELECT key, account_id, operation, result, created_at
		FROM idempotency_keys
		WHERE key = $1 AND created_at >= $2
	`

	var record models.IdempotencyRecord
	err := r.q.QueryRow(ctx, query, key, notBefore).Scan(
		&record.Key,
		&record.AccountID,
		&record.Operation,
		&record.Result,
		&record.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key %s: %w", key, err)
	}

	return &record, nil
}

// Insert stores a key with its serialized result. The primary key constraint
// makes concurrent duplicate submissions fail here, inside the same
// transaction as their mutation, so at most one of them commits.
func (r *IdempotencyRepository) Insert(ctx context.Context, record *models.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_keys (key, account_id, operation, result)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		record.Key,
		record.AccountID,
		record.Operation,
		record.Result,
	).Scan(&record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("idempotency key %s already used: %w", record.Key, models.ErrDuplicateRequest)
		}
		return fmt.Errorf("failed to insert idempotency key %s: %w", record.Key, err)
	}
	return nil
}

// PurgeOlderThan deletes keys past the retention window
func (r *IdempotencyRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}
