package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lockbank/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EngineConfig configures the transaction engine
type EngineConfig struct {
	IdempotencyRetention  time.Duration
	MutationRetryAttempts int // bounded transparent retries on version conflict
}

type transactionEngine struct {
	uowFactory  UnitOfWorkFactory
	accounts    AccountRepository     // pool-backed, pre-mutation reads
	balances    BalanceRepository     // pool-backed read path
	ledger      LedgerRepository      // pool-backed read path
	idempotency IdempotencyRepository // pool-backed pre-check and purge
	fraud       FraudGuard
	limiter     RateLimiter
	converter   ConversionEngine
	cfg         EngineConfig
}

// NewTransactionEngine creates the top-level transaction orchestrator
func NewTransactionEngine(
	uowFactory UnitOfWorkFactory,
	accounts AccountRepository,
	balances BalanceRepository,
	ledger LedgerRepository,
	idempotency IdempotencyRepository,
	fraud FraudGuard,
	limiter RateLimiter,
	converter ConversionEngine,
	cfg EngineConfig,
) TransactionEngine {
	return &transactionEngine{
		uowFactory:  uowFactory,
		accounts:    accounts,
		balances:    balances,
		ledger:      ledger,
		idempotency: idempotency,
		fraud:       fraud,
		limiter:     limiter,
		converter:   converter,
		cfg:         cfg,
	}
}

func (e *transactionEngine) Deposit(ctx context.Context, accountID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error) {
	return e.Submit(ctx, &models.TransactionRequest{
		AccountID: accountID, Operation: models.OperationDeposit,
		Currency: currency, Amount: amount, IdempotencyKey: idempotencyKey, Actor: actor,
	})
}

func (e *transactionEngine) Withdraw(ctx context.Context, accountID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error) {
	return e.Submit(ctx, &models.TransactionRequest{
		AccountID: accountID, Operation: models.OperationWithdraw,
		Currency: currency, Amount: amount, IdempotencyKey: idempotencyKey, Actor: actor,
	})
}

func (e *transactionEngine) Transfer(ctx context.Context, fromID, toID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error) {
	return e.Submit(ctx, &models.TransactionRequest{
		AccountID: fromID, Operation: models.OperationTransferOut, CounterpartyID: toID,
		Currency: currency, Amount: amount, IdempotencyKey: idempotencyKey, Actor: actor,
	})
}

func (e *transactionEngine) Convert(ctx context.Context, accountID int64, source models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error) {
	return e.Submit(ctx, &models.TransactionRequest{
		AccountID: accountID, Operation: models.OperationConvertDebit,
		Currency: source, Amount: amount, IdempotencyKey: idempotencyKey, Actor: actor,
	})
}

func (e *transactionEngine) SettlePurchase(ctx context.Context, accountID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error) {
	return e.Submit(ctx, &models.TransactionRequest{
		AccountID: accountID, Operation: models.OperationPurchase,
		Currency: currency, Amount: amount, IdempotencyKey: idempotencyKey, Actor: actor,
	})
}

// Submit runs one balance-affecting request through the fixed pipeline:
// fraud check, then rate limit, then the atomic mutation+audit unit. The
// order is deliberate: a request destined for fraud rejection never consumes
// a rate-limit token. Cancellation is honored up to the mutation; once the
// mutation begins, the unit of work runs to completion on a detached context
// so a caller disconnect cannot orphan partial state.
func (e *transactionEngine) Submit(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error) {
	logger := log.WithFields(log.Fields{
		"accountID":      req.AccountID,
		"operation":      req.Operation,
		"currency":       req.Currency,
		"amount":         req.Amount,
		"idempotencyKey": req.IdempotencyKey,
	})
	state := models.StateReceived

	if err := e.validate(req); err != nil {
		return nil, e.reject(logger, state, err)
	}

	account, counterparty, err := e.loadParties(ctx, req)
	if err != nil {
		return nil, e.reject(logger, state, err)
	}

	// Repeated key within the retention window: return the original result
	// without re-entering the pipeline.
	notBefore := time.Now().Add(-e.cfg.IdempotencyRetention)
	if stored, err := e.idempotency.Get(ctx, req.IdempotencyKey, notBefore); err != nil {
		return nil, e.reject(logger, state, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err))
	} else if stored != nil {
		if err := matchStored(stored, req); err != nil {
			return nil, e.reject(logger, state, err)
		}
		logger.Info("Returning stored result for repeated idempotency key")
		return decodeResult(stored.Result)
	}

	// Fraud guard always runs first; its counters record the attempt even
	// when a later stage fails.
	if err := e.fraud.Check(ctx, account, req.Operation, req.Amount); err != nil {
		return nil, e.reject(logger, state, err)
	}
	state = models.StateFraudChecked

	subject := fmt.Sprintf("acct:%d", account.ID)
	if req.SourceIP != "" {
		subject = "ip:" + req.SourceIP
	}
	if err := e.limiter.Allow(subject, models.ClassFor(req.Operation), 1); err != nil {
		return nil, e.reject(logger, state, err)
	}
	state = models.StateRateLimited

	// Last cancellation point before the mutation
	if err := ctx.Err(); err != nil {
		return nil, e.reject(logger, state, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
	}

	// Version conflicts are an internal signal; retry the mutation step a
	// bounded number of times and never surface them.
	mutationCtx := context.WithoutCancel(ctx)
	var result *models.TransactionResult
	for attempt := 0; ; attempt++ {
		result, err = e.mutate(mutationCtx, req, account, counterparty, &state)
		if err == nil {
			break
		}
		if errors.Is(err, models.ErrDuplicateRequest) {
			// Lost a race against a concurrent submission of the same key
			logger.Info("Concurrent duplicate request, returning stored result")
			return e.storedResult(mutationCtx, req, notBefore)
		}
		if errors.Is(err, models.ErrVersionConflict) && attempt < e.cfg.MutationRetryAttempts {
			logger.WithField("attempt", attempt+1).Debug("Version conflict, retrying mutation")
			continue
		}
		if errors.Is(err, models.ErrCompensationFailed) {
			state = models.StateFailed
			logger.WithError(err).WithFields(log.Fields{
				"state": state,
				"alert": "manual_reconciliation",
			}).Error("Transaction failed and could not be compensated")
			return nil, err
		}
		return nil, e.reject(logger, state, err)
	}
	state = models.StateCompleted

	logger.WithFields(log.Fields{
		"state":         state,
		"sequence":      result.Sequence,
		"newBalance":    result.NewBalance,
		"correlationID": result.CorrelationID,
	}).Info("Transaction completed")

	return result, nil
}

// validate rejects malformed requests before any check runs
func (e *transactionEngine) validate(req *models.TransactionRequest) error {
	if !req.Currency.Valid() {
		return fmt.Errorf("currency %q: %w", req.Currency, models.ErrInvalidCurrency)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("amount %d: %w", req.Amount, models.ErrInvalidAmount)
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("missing idempotency key: %w", models.ErrInvalidInput)
	}
	switch req.Operation {
	case models.OperationDeposit, models.OperationWithdraw, models.OperationPurchase,
		models.OperationRefund, models.OperationConvertDebit:
	case models.OperationTransferOut:
		if req.CounterpartyID == 0 {
			return fmt.Errorf("transfer requires a recipient: %w", models.ErrInvalidInput)
		}
		if req.CounterpartyID == req.AccountID {
			return fmt.Errorf("cannot transfer to self: %w", models.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("operation %q not accepted: %w", req.Operation, models.ErrInvalidInput)
	}
	return nil
}

// loadParties resolves the account (and transfer counterparty) and applies
// the platform and status gates that precede any counter or token spend
func (e *transactionEngine) loadParties(ctx context.Context, req *models.TransactionRequest) (*models.Account, *models.Account, error) {
	account, err := e.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	if account == nil {
		return nil, nil, fmt.Errorf("account %d: %w", req.AccountID, models.ErrAccountNotFound)
	}
	if account.Status == models.AccountStatusSuspended {
		return nil, nil, fmt.Errorf("account %d: %w", account.ID, models.ErrAccountSuspended)
	}
	if !account.CanHold(req.Currency) {
		return nil, nil, fmt.Errorf("account %d cannot hold %s: %w", account.ID, req.Currency, models.ErrPlatformNotEligible)
	}

	var counterparty *models.Account
	if req.Operation == models.OperationTransferOut {
		counterparty, err = e.accounts.GetByID(ctx, req.CounterpartyID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
		}
		if counterparty == nil {
			return nil, nil, fmt.Errorf("recipient %d: %w", req.CounterpartyID, models.ErrAccountNotFound)
		}
		if counterparty.Status != models.AccountStatusActive {
			return nil, nil, fmt.Errorf("recipient %d: %w", counterparty.ID, models.ErrAccountSuspended)
		}
		if !counterparty.CanHold(req.Currency) {
			return nil, nil, fmt.Errorf("recipient %d cannot hold %s: %w", counterparty.ID, req.Currency, models.ErrPlatformNotEligible)
		}
	}

	return account, counterparty, nil
}

// mutate performs the operation's balance changes, audit entries and
// idempotency record as one atomic unit of work
func (e *transactionEngine) mutate(ctx context.Context, req *models.TransactionRequest, account, counterparty *models.Account, state *models.TransactionState) (*models.TransactionResult, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer uow.Rollback() // No-op if already committed

	var result *models.TransactionResult
	var err error

	switch req.Operation {
	case models.OperationConvertDebit:
		result, err = e.mutateConversion(ctx, uow, req, account)
	case models.OperationTransferOut:
		result, err = e.mutateTransfer(ctx, uow, req, account, counterparty)
	default:
		result, err = e.mutateSingle(ctx, uow, req, account)
	}
	if err != nil {
		return nil, err
	}
	// Balance deltas and their audit entries are staged as one unit
	*state = models.StateMutated
	result.Operation = req.Operation
	result.CompletedAt = time.Now().UTC()

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	err = uow.IdempotencyRepository().Insert(ctx, &models.IdempotencyRecord{
		Key:       req.IdempotencyKey,
		AccountID: account.ID,
		Operation: req.Operation,
		Result:    encoded,
	})
	if err != nil {
		return nil, err
	}
	*state = models.StateAudited

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	return result, nil
}

// mutateSingle handles the one-legged operations: deposit, withdraw,
// purchase settlement and refund
func (e *transactionEngine) mutateSingle(ctx context.Context, uow UnitOfWork, req *models.TransactionRequest, account *models.Account) (*models.TransactionResult, error) {
	delta := req.Amount
	if req.Operation == models.OperationWithdraw || req.Operation == models.OperationPurchase {
		delta = -req.Amount
	}

	current, err := uow.BalanceRepository().GetBalance(ctx, account.ID, req.Currency)
	if err != nil {
		return nil, err
	}

	record, err := uow.BalanceRepository().ApplyDelta(ctx, account.ID, req.Currency, delta, &current.Version)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	entry := &models.LedgerEntry{
		AccountID:        account.ID,
		Operation:        req.Operation,
		Currency:         req.Currency,
		Delta:            delta,
		ResultingBalance: record.Amount,
		Actor:            req.Actor.String(),
		CorrelationID:    correlationID,
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	return &models.TransactionResult{
		Currency:      req.Currency,
		NewBalance:    record.Amount,
		NewVersion:    record.Version,
		Sequence:      entry.Sequence,
		CorrelationID: correlationID,
	}, nil
}

// mutateTransfer debits the sender and credits the recipient; both entries
// share one correlation id
func (e *transactionEngine) mutateTransfer(ctx context.Context, uow UnitOfWork, req *models.TransactionRequest, from, to *models.Account) (*models.TransactionResult, error) {
	current, err := uow.BalanceRepository().GetBalance(ctx, from.ID, req.Currency)
	if err != nil {
		return nil, err
	}

	// Balance rows are locked in account-id order so two opposite
	// concurrent transfers cannot deadlock on each other
	var debited, credited *models.BalanceRecord
	debit := func() error {
		debited, err = uow.BalanceRepository().ApplyDelta(ctx, from.ID, req.Currency, -req.Amount, &current.Version)
		return err
	}
	credit := func() error {
		credited, err = uow.BalanceRepository().ApplyDelta(ctx, to.ID, req.Currency, req.Amount, nil)
		return err
	}
	first, second := debit, credit
	if to.ID < from.ID {
		first, second = credit, debit
	}
	if err := first(); err != nil {
		return nil, err
	}
	if err := second(); err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	outEntry := &models.LedgerEntry{
		AccountID:        from.ID,
		Operation:        models.OperationTransferOut,
		Currency:         req.Currency,
		Delta:            -req.Amount,
		ResultingBalance: debited.Amount,
		Actor:            req.Actor.String(),
		CorrelationID:    correlationID,
	}
	if err := RecordLedgerEntry(ctx, uow, outEntry); err != nil {
		return nil, err
	}

	inEntry := &models.LedgerEntry{
		AccountID:        to.ID,
		Operation:        models.OperationTransferIn,
		Currency:         req.Currency,
		Delta:            req.Amount,
		ResultingBalance: credited.Amount,
		Actor:            req.Actor.String(),
		CorrelationID:    correlationID,
	}
	if err := RecordLedgerEntry(ctx, uow, inEntry); err != nil {
		return nil, err
	}

	return &models.TransactionResult{
		Currency:      req.Currency,
		NewBalance:    debited.Amount,
		NewVersion:    debited.Version,
		Sequence:      outEntry.Sequence,
		CorrelationID: correlationID,
	}, nil
}

// mutateConversion delegates to the conversion engine inside this unit of work
func (e *transactionEngine) mutateConversion(ctx context.Context, uow UnitOfWork, req *models.TransactionRequest, account *models.Account) (*models.TransactionResult, error) {
	conversion, err := e.converter.ConvertWithin(ctx, uow, account, req.Currency, req.Amount, req.Actor)
	if err != nil {
		return nil, err
	}

	return &models.TransactionResult{
		Currency:       req.Currency,
		NewBalance:     conversion.NewSourceBalance,
		CorrelationID:  conversion.CorrelationID,
		FiatCredited:   conversion.FiatCredited,
		RateUsed:       conversion.RateUsed,
		RateID:         conversion.RateID,
		NewFiatBalance: conversion.NewFiatBalance,
	}, nil
}

func (e *transactionEngine) storedResult(ctx context.Context, req *models.TransactionRequest, notBefore time.Time) (*models.TransactionResult, error) {
	stored, err := e.idempotency.Get(ctx, req.IdempotencyKey, notBefore)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("idempotency key vanished: %w", models.ErrStorageUnavailable)
	}
	if err := matchStored(stored, req); err != nil {
		return nil, err
	}
	return decodeResult(stored.Result)
}

// matchStored rejects a key replay that arrives from a different account or
// with a different operation; a stored result belongs to exactly one request
// shape and must never leak across callers.
func matchStored(stored *models.IdempotencyRecord, req *models.TransactionRequest) error {
	if stored.AccountID != req.AccountID || stored.Operation != req.Operation {
		return fmt.Errorf("idempotency key %q reused by account %d for %s: %w",
			req.IdempotencyKey, req.AccountID, req.Operation, models.ErrInvalidInput)
	}
	return nil
}

func (e *transactionEngine) reject(logger *log.Entry, state models.TransactionState, err error) error {
	logger.WithFields(log.Fields{
		"state": models.StateRejected,
		"stage": state,
		"error": err,
	}).Info("Transaction rejected")
	return err
}

func decodeResult(encoded []byte) (*models.TransactionResult, error) {
	var result models.TransactionResult
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &result, nil
}

// GetBalance is the read path for one (account, currency) balance
func (e *transactionEngine) GetBalance(ctx context.Context, accountID int64, currency models.Currency) (*models.BalanceRecord, error) {
	return e.balances.GetBalance(ctx, accountID, currency)
}

// ReadAuditRange is the read path over the audit log
func (e *transactionEngine) ReadAuditRange(ctx context.Context, accountID int64, from, to int64, limit int) ([]*models.LedgerEntry, error) {
	return e.ledger.ReadRange(ctx, accountID, from, to, limit)
}

func (e *transactionEngine) ReadRecentActivity(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	return e.ledger.ReadRecent(ctx, accountID, limit)
}

// PurgeExpiredIdempotencyKeys removes keys past the retention window. Meant
// to be called periodically from a maintenance loop.
func (e *transactionEngine) PurgeExpiredIdempotencyKeys(ctx context.Context) (int64, error) {
	return e.idempotency.PurgeOlderThan(ctx, time.Now().Add(-e.cfg.IdempotencyRetention))
}
