package testutil

import (
	"context"
	"testing"

	"lockbank/database"
	"lockbank/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Fund sets a balance row directly, bypassing the ledger. Only for seeding
// test preconditions; production code always goes through ApplyDelta.
func Fund(t *testing.T, db *database.DB, accountID int64, currency models.Currency, amount int64) {
	t.Helper()

	tag, err := db.Exec(context.Background(),
		"UPDATE balances SET amount = $1 WHERE account_id = $2 AND currency = $3",
		amount, accountID, currency,
	)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected(), "no balance row to fund")
}

// NewLedgerEntry builds a deposit entry with sensible defaults
func NewLedgerEntry(accountID int64, currency models.Currency, delta, resulting int64) *models.LedgerEntry {
	return &models.LedgerEntry{
		AccountID:        accountID,
		Operation:        models.OperationDeposit,
		Currency:         currency,
		Delta:            delta,
		ResultingBalance: resulting,
		Actor:            models.SystemActor.String(),
		CorrelationID:    uuid.NewString(),
	}
}
