package service

import (
	"context"
	"fmt"

	"lockbank/events"
	"lockbank/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type accountService struct {
	uowFactory UnitOfWorkFactory
	accounts   AccountRepository // pool-backed read path
	balances   BalanceRepository
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, accounts AccountRepository, balances BalanceRepository) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		accounts:   accounts,
		balances:   balances,
	}
}

// GetOrCreateAccount retrieves an account by its platform identity or
// provisions a new one with zero balances and initial ledger entries
func (s *accountService) GetOrCreateAccount(ctx context.Context, externalID, username string, platform models.Platform) (*models.Account, error) {
	existing, err := s.accounts.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", externalID, err)
	}
	if existing != nil {
		return existing, nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().Create(ctx, externalID, username, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", externalID, err)
	}

	// One initial entry per held currency so every balance is reconstructible
	// from the ledger alone
	correlationID := uuid.NewString()
	for _, currency := range account.Currencies() {
		entry := &models.LedgerEntry{
			AccountID:        account.ID,
			Operation:        models.OperationInitial,
			Currency:         currency,
			Delta:            0,
			ResultingBalance: 0,
			Actor:            models.SystemActor.String(),
			CorrelationID:    correlationID,
		}
		if _, err := uow.LedgerRepository().Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to record initial entry: %w", err)
		}
	}

	uow.EventBus().Publish(events.AccountCreatedEvent{
		AccountID:  account.ID,
		ExternalID: externalID,
		Username:   username,
		Platform:   platform,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	log.WithFields(log.Fields{
		"accountID":  account.ID,
		"externalID": externalID,
		"platform":   platform,
	}).Info("Provisioned new account")

	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, externalID string) (*models.Account, error) {
	account, err := s.accounts.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", externalID, err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s: %w", externalID, models.ErrAccountNotFound)
	}
	return account, nil
}

func (s *accountService) GetBalances(ctx context.Context, accountID int64) ([]*models.BalanceRecord, error) {
	return s.balances.GetBalances(ctx, accountID)
}
