package service

import (
	"context"
	"fmt"
	"time"

	"lockbank/events"
	"lockbank/models"

	log "github.com/sirupsen/logrus"
)

type adminService struct {
	uowFactory UnitOfWorkFactory
	accounts   AccountRepository
	fraud      FraudGuard
}

// NewAdminService creates a new admin service. Callers arrive with an
// already-verified admin identity; author is that identity, recorded verbatim.
func NewAdminService(uowFactory UnitOfWorkFactory, accounts AccountRepository, fraud FraudGuard) AdminService {
	return &adminService{
		uowFactory: uowFactory,
		accounts:   accounts,
		fraud:      fraud,
	}
}

// SetRate appends a new rate row effective immediately. Rates are only
// defined for game currencies; fiat has no rate to itself.
func (s *adminService) SetRate(ctx context.Context, currency models.Currency, rate int64, author string) (*models.ConversionRate, error) {
	if !currency.IsGame() {
		return nil, fmt.Errorf("rates apply to game currencies, got %q: %w", currency, models.ErrInvalidCurrency)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d: %w", rate, models.ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer uow.Rollback()

	row, err := uow.RateRepository().Insert(ctx, currency, rate, author)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rate: %w", err)
	}

	s.warnOnParityDrift(ctx, uow, currency, rate)

	uow.EventBus().Publish(events.RateChangedEvent{
		RateID:   row.ID,
		Currency: currency,
		Rate:     rate,
		Author:   author,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	log.WithFields(log.Fields{
		"currency": currency,
		"rate":     rate,
		"author":   author,
		"rateID":   row.ID,
	}).Info("Conversion rate updated")

	return row, nil
}

// warnOnParityDrift flags a new rate that strays from the in-game
// denominations (1 DL = 100 WL, 1 BGL = 100 DL). Drift is legal, admins
// price off parity on purpose sometimes, but it should never happen silently.
func (s *adminService) warnOnParityDrift(ctx context.Context, uow UnitOfWork, currency models.Currency, rate int64) {
	var multiplier int64
	switch currency {
	case models.CurrencyDL:
		multiplier = models.WLPerDL
	case models.CurrencyBGL:
		multiplier = models.WLPerDL * models.DLPerBGL
	default:
		return
	}

	wl, err := uow.RateRepository().CurrentRate(ctx, models.CurrencyWL, time.Now())
	if err != nil {
		return
	}

	if expected := wl.Rate * multiplier; rate != expected {
		log.WithFields(log.Fields{
			"currency": currency,
			"rate":     rate,
			"parity":   expected,
		}).Warn("New rate drifts from lock denomination parity")
	}
}

func (s *adminService) RateHistory(ctx context.Context, currency models.Currency, limit int) ([]*models.ConversionRate, error) {
	if !currency.IsGame() {
		return nil, fmt.Errorf("rates apply to game currencies, got %q: %w", currency, models.ErrInvalidCurrency)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer uow.Rollback()

	rows, err := uow.RateRepository().History(ctx, currency, limit)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return rows, nil
}

func (s *adminService) Flag(ctx context.Context, accountID int64, reason string, author string) error {
	return s.fraud.Flag(ctx, accountID, reason, models.Actor{Kind: models.ActorAdmin, ID: author})
}

func (s *adminService) Unflag(ctx context.Context, accountID int64, author string) error {
	return s.fraud.Unflag(ctx, accountID, models.Actor{Kind: models.ActorAdmin, ID: author})
}

func (s *adminService) Suspend(ctx context.Context, accountID int64, author string) error {
	return s.setStatus(ctx, accountID, models.AccountStatusSuspended, "suspended by "+author, author)
}

func (s *adminService) Reinstate(ctx context.Context, accountID int64, author string) error {
	return s.setStatus(ctx, accountID, models.AccountStatusActive, "", author)
}

func (s *adminService) setStatus(ctx context.Context, accountID int64, status models.AccountStatus, reason, author string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	if account == nil {
		return fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
	}
	if account.Status == models.AccountStatusBlacklisted {
		// Blacklist is owned by the fraud guard; use Unflag first
		return fmt.Errorf("account %d is blacklisted: %w", accountID, models.ErrInvalidInput)
	}

	if err := uow.AccountRepository().UpdateStatus(ctx, accountID, status, reason); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	log.WithFields(log.Fields{
		"accountID": accountID,
		"status":    status,
		"author":    author,
	}).Info("Account status changed")

	return nil
}
