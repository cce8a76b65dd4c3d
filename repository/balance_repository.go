package repository

import (
	"context"
	"fmt"

	"lockbank/database"
	"lockbank/models"

	"github.com/jackc/pgx/v5"
)

// BalanceRepository implements the BalanceRepository interface
type BalanceRepository struct {
	q queryable
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *database.DB) *BalanceRepository {
	return &BalanceRepository{q: db.Pool}
}

// newBalanceRepositoryWithTx creates a new balance repository with a transaction
func newBalanceRepositoryWithTx(tx queryable) *BalanceRepository {
	return &BalanceRepository{q: tx}
}

// GetBalance retrieves one (account, currency) balance record
func (r *BalanceRepository) GetBalance(ctx context.Context, accountID int64, currency models.Currency) (*models.BalanceRecord, error) {
	query := `
		SELECT account_id, currency, amount, version, updated_at
		FROM balances
		WHERE account_id = $1 AND currency = $2
	`

	var record models.BalanceRecord
	err := r.q.QueryRow(ctx, query, accountID, currency).Scan(
		&record.AccountID,
		&record.Currency,
		&record.Amount,
		&record.Version,
		&record.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, r.resolveMissingRow(ctx, accountID, currency)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s balance for account %d: %w", currency, accountID, err)
	}

	return &record, nil
}

// GetBalances returns all balance records for an account
func (r *BalanceRepository) GetBalances(ctx context.Context, accountID int64) ([]*models.BalanceRecord, error) {
	query := `
		SELECT account_id, currency, amount, version, updated_at
		FROM balances
		WHERE account_id = $1
		ORDER BY currency
	`

	rows, err := r.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var records []*models.BalanceRecord
	for rows.Next() {
		var record models.BalanceRecord
		err := rows.Scan(
			&record.AccountID,
			&record.Currency,
			&record.Amount,
			&record.Version,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	return records, nil
}

// ApplyDelta applies a signed amount change to one (account, currency)
// balance. The update is conditional: it only succeeds if the resulting
// amount stays non-negative and, when expectedVersion is supplied, the row
// still carries that version. Every successful call increments the version
// by exactly one. The row lock taken by the UPDATE serializes concurrent
// deltas against the same key without blocking unrelated accounts.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, accountID int64, currency models.Currency, delta int64, expectedVersion *int64) (*models.BalanceRecord, error) {
	var query string
	var args []any
	if expectedVersion != nil {
		query = `
			UPDATE balances
			SET amount = amount + $1, version = version + 1, updated_at = NOW()
			WHERE account_id = $2 AND currency = $3 AND amount + $1 >= 0 AND version = $4
			RETURNING account_id, currency, amount, version, updated_at
		`
		args = []any{delta, accountID, currency, *expectedVersion}
	} else {
		query = `
			UPDATE balances
			SET amount = amount + $1, version = version + 1, updated_at = NOW()
			WHERE account_id = $2 AND currency = $3 AND amount + $1 >= 0
			RETURNING account_id, currency, amount, version, updated_at
		`
		args = []any{delta, accountID, currency}
	}

	var record models.BalanceRecord
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&record.AccountID,
		&record.Currency,
		&record.Amount,
		&record.Version,
		&record.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, r.resolveFailedDelta(ctx, accountID, currency, delta, expectedVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply delta of %d %s to account %d: %w", delta, currency, accountID, err)
	}

	return &record, nil
}

// resolveFailedDelta turns a zero-row conditional update into the precise
// typed failure: missing row, version mismatch, or insufficient funds.
func (r *BalanceRepository) resolveFailedDelta(ctx context.Context, accountID int64, currency models.Currency, delta int64, expectedVersion *int64) error {
	query := `SELECT amount, version FROM balances WHERE account_id = $1 AND currency = $2`

	var amount, version int64
	err := r.q.QueryRow(ctx, query, accountID, currency).Scan(&amount, &version)
	if err == pgx.ErrNoRows {
		return r.resolveMissingRow(ctx, accountID, currency)
	}
	if err != nil {
		return fmt.Errorf("failed to check balance for account %d: %w", accountID, err)
	}

	if expectedVersion != nil && version != *expectedVersion {
		return fmt.Errorf("account %d %s: expected version %d, have %d: %w",
			accountID, currency, *expectedVersion, version, models.ErrVersionConflict)
	}
	return fmt.Errorf("account %d %s: have %d, need %d: %w",
		accountID, currency, amount, -delta, models.ErrInsufficientFunds)
}

// resolveMissingRow distinguishes an unknown account from a currency the
// account's platform may never hold.
func (r *BalanceRepository) resolveMissingRow(ctx context.Context, accountID int64, currency models.Currency) error {
	var platform models.Platform
	err := r.q.QueryRow(ctx, `SELECT platform FROM accounts WHERE id = $1`, accountID).Scan(&platform)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check account %d: %w", accountID, err)
	}

	if platform == models.PlatformWeb && currency.IsGame() {
		return fmt.Errorf("account %d cannot hold %s: %w", accountID, currency, models.ErrCurrencyNotAllowed)
	}
	return fmt.Errorf("account %d has no %s balance: %w", accountID, currency, models.ErrBalanceNotFound)
}
