package service

import (
	"context"
	"fmt"

	"lockbank/events"
	"lockbank/models"
)

// RecordLedgerEntry appends an audit entry and stages the matching balance
// change event. This is the single entry point for documenting balance
// changes: every ApplyDelta in the system is followed by exactly one call,
// inside the same unit of work, so a balance change can never commit without
// its audit record.
func RecordLedgerEntry(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if _, err := uow.LedgerRepository().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	// Staged on the transactional bus; delivered only after commit
	uow.EventBus().Publish(events.BalanceChangeEvent{
		AccountID:     entry.AccountID,
		Currency:      entry.Currency,
		OldBalance:    entry.ResultingBalance - entry.Delta,
		NewBalance:    entry.ResultingBalance,
		Operation:     entry.Operation,
		ChangeAmount:  entry.Delta,
		CorrelationID: entry.CorrelationID,
	})

	return nil
}
