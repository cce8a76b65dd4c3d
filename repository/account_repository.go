package repository

import (
	"context"
	"fmt"

	"lockbank/database"
	"lockbank/models"

	"github.com/jackc/pgx/v5"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

const accountColumns = `id, external_id, username, platform, status, blacklist_reason, flagged_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.ExternalID,
		&account.Username,
		&account.Platform,
		&account.Status,
		&account.BlacklistReason,
		&account.FlaggedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByID retrieves an account by its internal ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return account, nil
}

// GetByExternalID retrieves an account by its platform identity
// (Discord ID for game accounts, web user ID for web accounts)
func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, externalID))
	if err != nil {
		return nil, fmt.Errorf("failed to get account by external ID %s: %w", externalID, err)
	}
	return account, nil
}

// Create creates a new account and zero-initializes one balance row per
// currency the platform allows. Balance rows are the allowlist: a web-only
// account never gets game-currency rows, so the store can reject those
// currencies without consulting the account again.
func (r *AccountRepository) Create(ctx context.Context, externalID, username string, platform models.Platform) (*models.Account, error) {
	query := `
		INSERT INTO accounts (external_id, username, platform)
		VALUES ($1, $2, $3)
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, externalID, username, platform))
	if err != nil {
		return nil, fmt.Errorf("failed to create account for %s: %w", externalID, err)
	}

	for _, currency := range account.Currencies() {
		_, err := r.q.Exec(ctx,
			`INSERT INTO balances (account_id, currency) VALUES ($1, $2)`,
			account.ID, currency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s balance for account %d: %w", currency, account.ID, err)
		}
	}

	return account, nil
}

// UpdateStatus changes an account's lifecycle status. Blacklisting records
// the reason and flag time; any other status clears them.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status models.AccountStatus, reason string) error {
	var query string
	var args []any
	if status == models.AccountStatusBlacklisted {
		query = `
			UPDATE accounts
			SET status = $1, blacklist_reason = $2, flagged_at = NOW(), updated_at = NOW()
			WHERE id = $3
		`
		args = []any{status, reason, id}
	} else {
		query = `
			UPDATE accounts
			SET status = $1, blacklist_reason = NULL, flagged_at = NULL, updated_at = NOW()
			WHERE id = $2
		`
		args = []any{status, id}
	}

	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update status for account %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, models.ErrAccountNotFound)
	}
	return nil
}
