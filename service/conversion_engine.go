package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"lockbank/events"
	"lockbank/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type conversionEngine struct {
	uowFactory UnitOfWorkFactory
	rateTable  RateTable
	alerts     *events.Bus // direct bus for alerts that must survive rollback
}

// NewConversionEngine creates a new conversion engine
func NewConversionEngine(uowFactory UnitOfWorkFactory, rateTable RateTable, alerts *events.Bus) ConversionEngine {
	return &conversionEngine{
		uowFactory: uowFactory,
		rateTable:  rateTable,
		alerts:     alerts,
	}
}

// ConvertWithin performs one currency-to-fiat conversion inside the
// caller's unit of work. Preconditions are checked in a fixed order, each
// with its own failure. The debit and credit are physically two balance
// mutations but commit as one atomic unit with their two audit entries, so
// no concurrent reader ever observes the debited-but-not-credited state. If
// the credit fails after the debit has been applied, the source currency is
// credited back with its own audited reversal before the original failure
// is returned; if even that reversal cannot be applied the condition is
// escalated as ErrCompensationFailed for manual reconciliation.
func (e *conversionEngine) ConvertWithin(ctx context.Context, uow UnitOfWork, account *models.Account, source models.Currency, amount int64, actor models.Actor) (*models.ConversionResult, error) {
	// Preconditions, in order, each a distinct failure
	if account.Platform != models.PlatformGame {
		return nil, fmt.Errorf("account %d is %s: %w", account.ID, account.Platform, models.ErrPlatformNotEligible)
	}
	if !source.IsGame() {
		return nil, fmt.Errorf("cannot convert %s: %w", source, models.ErrInvalidCurrency)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("conversion amount %d: %w", amount, models.ErrInvalidAmount)
	}

	// Lock the rate before touching any balance. The rate row id goes into
	// the result so the conversion can be replayed exactly.
	rateRow, err := e.rateTable.CurrentRate(ctx, source, time.Now())
	if err != nil {
		return nil, err
	}

	// Rates are integer rupiah per source unit, so the product is exact and
	// already floored: converting in small pieces can never issue more fiat
	// than one equivalent large conversion. The product must not wrap: a
	// wrapped negative would debit the fiat balance instead of crediting it.
	if amount > math.MaxInt64/rateRow.Rate {
		return nil, fmt.Errorf("conversion of %d %s at rate %d overflows: %w", amount, source, rateRow.Rate, models.ErrInvalidAmount)
	}
	fiatAmount := amount * rateRow.Rate

	correlationID := uuid.NewString()

	debited, err := uow.BalanceRepository().ApplyDelta(ctx, account.ID, source, -amount, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to debit %d %s: %w", amount, source, err)
	}

	debitEntry := &models.LedgerEntry{
		AccountID:        account.ID,
		Operation:        models.OperationConvertDebit,
		Currency:         source,
		Delta:            -amount,
		ResultingBalance: debited.Amount,
		Actor:            actor.String(),
		CorrelationID:    correlationID,
	}
	if err := RecordLedgerEntry(ctx, uow, debitEntry); err != nil {
		return nil, err
	}

	credited, err := uow.BalanceRepository().ApplyDelta(ctx, account.ID, models.CurrencyIDR, fiatAmount, nil)
	if err != nil {
		return nil, e.compensate(ctx, uow, account.ID, source, amount, correlationID, actor, err)
	}

	creditEntry := &models.LedgerEntry{
		AccountID:        account.ID,
		Operation:        models.OperationConvertCredit,
		Currency:         models.CurrencyIDR,
		Delta:            fiatAmount,
		ResultingBalance: credited.Amount,
		Actor:            actor.String(),
		CorrelationID:    correlationID,
	}
	if err := RecordLedgerEntry(ctx, uow, creditEntry); err != nil {
		return nil, e.compensate(ctx, uow, account.ID, source, amount, correlationID, actor, err)
	}

	uow.EventBus().Publish(events.ConversionCompletedEvent{
		AccountID:     account.ID,
		Currency:      source,
		SourceAmount:  amount,
		FiatCredited:  fiatAmount,
		RateID:        rateRow.ID,
		CorrelationID: correlationID,
	})

	return &models.ConversionResult{
		FiatCredited:     fiatAmount,
		RateUsed:         rateRow.Rate,
		RateID:           rateRow.ID,
		NewSourceBalance: debited.Amount,
		NewFiatBalance:   credited.Amount,
		CorrelationID:    correlationID,
	}, nil
}

// compensate credits the source currency back after a failed credit step,
// with its own audited reversal under the same correlation id, then returns
// the original failure. The surrounding unit of work still decides commit or
// rollback; a committed compensation leaves a net-zero, fully audited trail.
func (e *conversionEngine) compensate(ctx context.Context, uow UnitOfWork, accountID int64, source models.Currency, amount int64, correlationID string, actor models.Actor, cause error) error {
	restored, err := uow.BalanceRepository().ApplyDelta(ctx, accountID, source, amount, nil)
	if err != nil {
		log.WithFields(log.Fields{
			"state":         models.StateFailed,
			"accountID":     accountID,
			"currency":      source,
			"amount":        amount,
			"correlationID": correlationID,
			"cause":         cause,
			"error":         err,
			"alert":         "manual_reconciliation",
		}).Error("Conversion compensation failed")
		// Emitted on the real bus, not the transactional one: the unit of
		// work is about to roll back and this alert must outlive it
		e.alerts.Emit(context.WithoutCancel(ctx), events.CompensationFailedEvent{
			AccountID:     accountID,
			Operation:     models.OperationConversionReversal,
			CorrelationID: correlationID,
			Detail:        err.Error(),
		})
		return fmt.Errorf("credit failed (%v), reversal also failed (%v): %w", cause, err, models.ErrCompensationFailed)
	}

	reversalEntry := &models.LedgerEntry{
		AccountID:        accountID,
		Operation:        models.OperationConversionReversal,
		Currency:         source,
		Delta:            amount,
		ResultingBalance: restored.Amount,
		Actor:            models.SystemActor.String(),
		CorrelationID:    correlationID,
	}
	if err := RecordLedgerEntry(ctx, uow, reversalEntry); err != nil {
		return fmt.Errorf("credit failed (%v), reversal audit failed (%v): %w", cause, err, models.ErrCompensationFailed)
	}

	log.WithFields(log.Fields{
		"state":         models.StateCompensating,
		"accountID":     accountID,
		"currency":      source,
		"amount":        amount,
		"correlationID": correlationID,
		"cause":         cause,
	}).Warn("Conversion compensated after failed credit")

	return fmt.Errorf("conversion compensated: %w", cause)
}

// Reverse administratively unwinds a committed conversion: the fiat credit
// is debited back and the source debit credited back, as adjustment entries
// under the original correlation id.
func (e *conversionEngine) Reverse(ctx context.Context, correlationID string, actor models.Actor) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	entries, err := uow.LedgerRepository().GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("failed to load conversion entries: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries for correlation %s: %w", correlationID, models.ErrInvalidInput)
	}

	for _, entry := range entries {
		switch entry.Operation {
		case models.OperationConvertDebit, models.OperationConvertCredit:
		default:
			return fmt.Errorf("correlation %s is not a conversion: %w", correlationID, models.ErrInvalidInput)
		}
	}

	// Undo in reverse order so the fiat leaves before the locks return
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		undone, err := uow.BalanceRepository().ApplyDelta(ctx, entry.AccountID, entry.Currency, -entry.Delta, nil)
		if err != nil {
			return fmt.Errorf("failed to reverse entry %d: %w", entry.Sequence, err)
		}

		reversal := &models.LedgerEntry{
			AccountID:        entry.AccountID,
			Operation:        models.OperationAdjustment,
			Currency:         entry.Currency,
			Delta:            -entry.Delta,
			ResultingBalance: undone.Amount,
			Actor:            actor.String(),
			CorrelationID:    correlationID,
		}
		if err := RecordLedgerEntry(ctx, uow, reversal); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"correlationID": correlationID,
		"actor":         actor.String(),
		"entries":       len(entries),
	}).Info("Conversion reversed")

	return nil
}
