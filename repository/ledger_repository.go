package repository

import (
	"context"
	"fmt"

	"lockbank/database"
	"lockbank/models"
)

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Append writes one audit entry and assigns its sequence number from the
// authoritative counter. The counter row update happens inside the caller's
// transaction, so sequences of committed entries are gap-free and the
// assignment is serialized with the balance mutation it documents. On
// success the entry's Sequence and CreatedAt are filled in.
func (r *LedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) (int64, error) {
	var sequence int64
	err := r.q.QueryRow(ctx,
		`UPDATE ledger_sequence SET value = value + 1 WHERE id = 1 RETURNING value`,
	).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to advance ledger sequence: %w", err)
	}

	query := `
		INSERT INTO ledger_entries
		(sequence, account_id, operation, currency, delta, resulting_balance, actor, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err = r.q.QueryRow(ctx, query,
		sequence,
		entry.AccountID,
		entry.Operation,
		entry.Currency,
		entry.Delta,
		entry.ResultingBalance,
		entry.Actor,
		entry.CorrelationID,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry for account %d: %w", entry.AccountID, err)
	}

	entry.Sequence = sequence
	return sequence, nil
}

// ReadRange returns an account's entries with from <= sequence <= to,
// ascending, capped at limit rows. Callers page by passing the last seen
// sequence + 1 as the next from.
func (r *LedgerRepository) ReadRange(ctx context.Context, accountID int64, from, to int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT sequence, account_id, operation, currency, delta, resulting_balance, actor, correlation_id, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND sequence >= $2 AND sequence <= $3
		ORDER BY sequence ASC
		LIMIT $4
	`

	rows, err := r.q.Query(ctx, query, accountID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger range for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		err := rows.Scan(
			&entry.Sequence,
			&entry.AccountID,
			&entry.Operation,
			&entry.Currency,
			&entry.Delta,
			&entry.ResultingBalance,
			&entry.Actor,
			&entry.CorrelationID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// ReadRecent returns an account's newest entries, newest first
func (r *LedgerRepository) ReadRecent(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT sequence, account_id, operation, currency, delta, resulting_balance, actor, correlation_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY sequence DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent ledger entries for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		err := rows.Scan(
			&entry.Sequence,
			&entry.AccountID,
			&entry.Operation,
			&entry.Currency,
			&entry.Delta,
			&entry.ResultingBalance,
			&entry.Actor,
			&entry.CorrelationID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// GetByCorrelationID returns all entries of one logical operation, e.g. the
// debit+credit pair of a conversion.
func (r *LedgerRepository) GetByCorrelationID(ctx context.Context, correlationID string) ([]*models.LedgerEntry, error) {
	query := `
		SELECT sequence, account_id, operation, currency, delta, resulting_balance, actor, correlation_id, created_at
		FROM ledger_entries
		WHERE correlation_id = $1
		ORDER BY sequence ASC
	`

	rows, err := r.q.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for correlation %s: %w", correlationID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		err := rows.Scan(
			&entry.Sequence,
			&entry.AccountID,
			&entry.Operation,
			&entry.Currency,
			&entry.Delta,
			&entry.ResultingBalance,
			&entry.Actor,
			&entry.CorrelationID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// SumDeltas returns the sum of all entry deltas for one (account, currency).
// By the reconstructibility invariant this equals the current balance amount.
func (r *LedgerRepository) SumDeltas(ctx context.Context, accountID int64, currency models.Currency) (int64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND currency = $2
	`

	var sum int64
	if err := r.q.QueryRow(ctx, query, accountID, currency).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger deltas for account %d: %w", accountID, err)
	}
	return sum, nil
}
