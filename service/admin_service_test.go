package service

import (
	"context"
	"testing"

	"lockbank/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAdminService_SetRate_Success(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockRates := new(MockRateRepository)
	mockEventBus := new(MockEventPublisher)
	mockUoW.SetRepositories(nil, nil, mockRates, nil, nil, mockEventBus)

	service := NewAdminService(mockFactory, nil, nil)

	inserted := wlRate(6, 1100)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockRates.On("Insert", ctx, models.CurrencyWL, int64(1100), "fdy").Return(inserted, nil)
	mockEventBus.On("Publish", mock.AnythingOfType("events.RateChangedEvent")).Return()

	row, err := service.SetRate(ctx, models.CurrencyWL, 1100, "fdy")

	require.NoError(t, err)
	assert.Equal(t, inserted, row)
	mockRates.AssertExpectations(t)
	mockEventBus.AssertExpectations(t)
}

func TestAdminService_SetRate_OffParityStillApplies(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockRates := new(MockRateRepository)
	mockEventBus := new(MockEventPublisher)
	mockUoW.SetRepositories(nil, nil, mockRates, nil, nil, mockEventBus)

	service := NewAdminService(mockFactory, nil, nil)

	// WL is at 1000, so DL parity would be 100000; 90000 is a deliberate
	// discount and must go through anyway
	inserted := &models.ConversionRate{ID: 7, Currency: models.CurrencyDL, Rate: 90000, Author: "fdy"}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockRates.On("Insert", ctx, models.CurrencyDL, int64(90000), "fdy").Return(inserted, nil)
	mockRates.On("CurrentRate", ctx, models.CurrencyWL, mock.Anything).Return(wlRate(5, 1000), nil)
	mockEventBus.On("Publish", mock.AnythingOfType("events.RateChangedEvent")).Return()

	row, err := service.SetRate(ctx, models.CurrencyDL, 90000, "fdy")

	require.NoError(t, err)
	assert.Equal(t, inserted, row)
	mockRates.AssertExpectations(t)
}

func TestAdminService_SetRate_RejectsFiatAndNonPositive(t *testing.T) {
	ctx := context.Background()
	service := NewAdminService(nil, nil, nil)

	_, err := service.SetRate(ctx, models.CurrencyIDR, 1000, "fdy")
	assert.ErrorIs(t, err, models.ErrInvalidCurrency)

	_, err = service.SetRate(ctx, models.CurrencyWL, 0, "fdy")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = service.SetRate(ctx, models.CurrencyWL, -10, "fdy")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestAdminService_FlagDelegatesToFraudGuard(t *testing.T) {
	ctx := context.Background()

	mockFraud := new(MockFraudGuard)
	service := NewAdminService(nil, nil, mockFraud)

	mockFraud.On("Flag", ctx, int64(1), "chargeback pattern",
		models.Actor{Kind: models.ActorAdmin, ID: "fdy"}).Return(nil)

	err := service.Flag(ctx, 1, "chargeback pattern", "fdy")

	require.NoError(t, err)
	mockFraud.AssertExpectations(t)
}

func TestAdminService_SuspendAndReinstate(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccounts := new(MockAccountRepository)
	mockUoW.SetRepositories(mockAccounts, nil, nil, nil, nil, nil)

	service := NewAdminService(mockFactory, mockAccounts, nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccounts.On("GetByID", ctx, int64(1)).Return(gameAccount(1), nil)
	mockAccounts.On("UpdateStatus", ctx, int64(1), models.AccountStatusSuspended, "suspended by fdy").Return(nil)

	require.NoError(t, service.Suspend(ctx, 1, "fdy"))
	mockAccounts.AssertExpectations(t)
}

func TestAdminService_SuspendBlacklistedRejected(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccounts := new(MockAccountRepository)
	mockUoW.SetRepositories(mockAccounts, nil, nil, nil, nil, nil)

	service := NewAdminService(mockFactory, mockAccounts, nil)

	account := gameAccount(1)
	account.Status = models.AccountStatusBlacklisted

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccounts.On("GetByID", ctx, int64(1)).Return(account, nil)

	err := service.Suspend(ctx, 1, "fdy")

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	mockAccounts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}
