package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lockbank/events"
	"lockbank/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type conversionFixture struct {
	engine   ConversionEngine
	factory  *MockUnitOfWorkFactory
	uow      *MockUnitOfWork
	balances *MockBalanceRepository
	ledger   *MockLedgerRepository
	rates    *MockRateRepository
	eventBus *MockEventPublisher
}

func newConversionFixture() *conversionFixture {
	f := &conversionFixture{
		factory:  new(MockUnitOfWorkFactory),
		uow:      new(MockUnitOfWork),
		balances: new(MockBalanceRepository),
		ledger:   new(MockLedgerRepository),
		rates:    new(MockRateRepository),
		eventBus: new(MockEventPublisher),
	}
	f.uow.SetRepositories(nil, f.balances, f.rates, f.ledger, nil, f.eventBus)
	f.engine = NewConversionEngine(f.factory, NewRateTable(f.rates), events.NewBus())
	return f
}

func wlRate(id, rate int64) *models.ConversionRate {
	return &models.ConversionRate{
		ID:            id,
		Currency:      models.CurrencyWL,
		Rate:          rate,
		EffectiveFrom: time.Now().Add(-time.Hour),
		Author:        "admin:fdy",
	}
}

func TestConvertWithin_Success(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()
	actor := models.Actor{Kind: models.ActorAccount, ID: "discord-123"}

	// 100 WL held, rate 1000 IDR per WL, convert 40
	f.rates.On("CurrentRate", mock.Anything, models.CurrencyWL, mock.Anything).
		Return(wlRate(5, 1000), nil)
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(-40), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 60, Version: 4}, nil)
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyIDR, int64(40000), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 40000, Version: 2}, nil)

	var correlations []string
	f.ledger.On("Append", mock.Anything, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Operation == models.OperationConvertDebit &&
			e.Currency == models.CurrencyWL &&
			e.Delta == -40 &&
			e.ResultingBalance == 60
	})).Run(func(args mock.Arguments) {
		correlations = append(correlations, args.Get(1).(*models.LedgerEntry).CorrelationID)
	}).Return(int64(10), nil).Once()
	f.ledger.On("Append", mock.Anything, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Operation == models.OperationConvertCredit &&
			e.Currency == models.CurrencyIDR &&
			e.Delta == 40000 &&
			e.ResultingBalance == 40000
	})).Run(func(args mock.Arguments) {
		correlations = append(correlations, args.Get(1).(*models.LedgerEntry).CorrelationID)
	}).Return(int64(11), nil).Once()

	f.eventBus.On("Publish", mock.Anything).Return()

	result, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, 40, actor)

	require.NoError(t, err)
	assert.Equal(t, int64(40000), result.FiatCredited)
	assert.Equal(t, int64(1000), result.RateUsed)
	assert.Equal(t, int64(5), result.RateID)
	assert.Equal(t, int64(60), result.NewSourceBalance)
	assert.Equal(t, int64(40000), result.NewFiatBalance)

	// Debit and credit entries carry the same correlation id
	require.Len(t, correlations, 2)
	assert.Equal(t, correlations[0], correlations[1])
	assert.Equal(t, correlations[0], result.CorrelationID)

	f.ledger.AssertExpectations(t)
}

func TestConvertWithin_WebAccountRejected(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	_, err := f.engine.ConvertWithin(ctx, f.uow, webAccount(2), models.CurrencyWL, 10, models.SystemActor)

	assert.ErrorIs(t, err, models.ErrPlatformNotEligible)
	f.rates.AssertNotCalled(t, "CurrentRate", mock.Anything, mock.Anything, mock.Anything)
	f.balances.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConvertWithin_FiatSourceRejected(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyIDR, 10, models.SystemActor)

	assert.ErrorIs(t, err, models.ErrInvalidCurrency)
}

func TestConvertWithin_OverflowingAmountRejected(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.rates.On("CurrentRate", mock.Anything, models.CurrencyWL, mock.Anything).Return(wlRate(1, 3), nil)

	// 1<<62 * 3 wraps negative in int64; the request must die before any
	// balance is touched
	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, 1<<62, models.SystemActor)

	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	f.balances.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestConvertWithin_NonPositiveAmountRejected(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.rates.On("CurrentRate", mock.Anything, mock.Anything, mock.Anything).Return(wlRate(1, 1000), nil).Maybe()

	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, 0, models.SystemActor)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, -3, models.SystemActor)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	f.balances.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConvertWithin_NoRateConfigured(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.rates.On("CurrentRate", mock.Anything, models.CurrencyBGL, mock.Anything).
		Return(nil, models.ErrNoRateConfigured)

	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyBGL, 2, models.SystemActor)

	assert.ErrorIs(t, err, models.ErrNoRateConfigured)
	f.balances.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConvertWithin_InsufficientSourceBalance(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.rates.On("CurrentRate", mock.Anything, models.CurrencyWL, mock.Anything).
		Return(wlRate(5, 1000), nil)
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(-40), (*int64)(nil)).
		Return(nil, models.ErrInsufficientFunds)

	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, 40, models.SystemActor)

	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestConvertWithin_CreditFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	creditFailure := errors.New("connection reset")

	f.rates.On("CurrentRate", mock.Anything, models.CurrencyWL, mock.Anything).
		Return(wlRate(5, 1000), nil)
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(-40), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 60, Version: 4}, nil).Once()
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyIDR, int64(40000), (*int64)(nil)).
		Return(nil, creditFailure).Once()
	// Compensation restores the debited locks
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(40), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 100, Version: 5}, nil).Once()

	f.ledger.On("Append", mock.Anything, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Operation == models.OperationConvertDebit
	})).Return(int64(10), nil).Once()
	f.ledger.On("Append", mock.Anything, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Operation == models.OperationConversionReversal &&
			e.Delta == 40 &&
			e.ResultingBalance == 100 &&
			e.Actor == models.SystemActor.String()
	})).Return(int64(11), nil).Once()

	f.eventBus.On("Publish", mock.Anything).Return()

	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, 40, models.SystemActor)

	require.Error(t, err)
	assert.ErrorIs(t, err, creditFailure)
	assert.NotErrorIs(t, err, models.ErrCompensationFailed)

	f.balances.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestConvertWithin_CompensationFailureEscalates(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.rates.On("CurrentRate", mock.Anything, models.CurrencyWL, mock.Anything).
		Return(wlRate(5, 1000), nil)
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(-40), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 60, Version: 4}, nil).Once()
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyIDR, int64(40000), (*int64)(nil)).
		Return(nil, errors.New("connection reset")).Once()
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(40), (*int64)(nil)).
		Return(nil, errors.New("connection reset")).Once()

	f.ledger.On("Append", mock.Anything, mock.Anything).Return(int64(10), nil).Once()
	f.eventBus.On("Publish", mock.Anything).Return()

	_, err := f.engine.ConvertWithin(ctx, f.uow, gameAccount(1), models.CurrencyWL, 40, models.SystemActor)

	assert.ErrorIs(t, err, models.ErrCompensationFailed)
}

// Converting in pieces must never yield more fiat than one large conversion
// at the same rate.
func TestConversion_NoArbitrageAcrossPieces(t *testing.T) {
	rate := int64(997)
	whole := int64(123) * rate

	var pieces int64
	for _, amount := range []int64{1, 2, 20, 100} {
		pieces += amount * rate
	}

	assert.Equal(t, whole, pieces)
}

func TestReverse_UnwindsCommittedConversion(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()
	actor := models.Actor{Kind: models.ActorAdmin, ID: "fdy"}

	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", mock.Anything).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)

	f.ledger.On("GetByCorrelationID", mock.Anything, "corr-9").Return([]*models.LedgerEntry{
		{Sequence: 10, AccountID: 1, Operation: models.OperationConvertDebit, Currency: models.CurrencyWL, Delta: -40},
		{Sequence: 11, AccountID: 1, Operation: models.OperationConvertCredit, Currency: models.CurrencyIDR, Delta: 40000},
	}, nil)

	// Fiat leaves first, then the locks return
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyIDR, int64(-40000), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 0, Version: 3}, nil).Once()
	f.balances.On("ApplyDelta", mock.Anything, int64(1), models.CurrencyWL, int64(40), (*int64)(nil)).
		Return(&models.BalanceRecord{Amount: 100, Version: 6}, nil).Once()

	f.ledger.On("Append", mock.Anything, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Operation == models.OperationAdjustment && e.CorrelationID == "corr-9"
	})).Return(int64(12), nil).Twice()

	f.eventBus.On("Publish", mock.Anything).Return()

	err := f.engine.Reverse(ctx, "corr-9", actor)

	require.NoError(t, err)
	f.balances.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestReverse_NonConversionCorrelationRejected(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", mock.Anything).Return(nil)
	f.uow.On("Rollback").Return(nil)

	f.ledger.On("GetByCorrelationID", mock.Anything, "corr-d").Return([]*models.LedgerEntry{
		{Sequence: 20, AccountID: 1, Operation: models.OperationDeposit, Currency: models.CurrencyWL, Delta: 50},
	}, nil)

	err := f.engine.Reverse(ctx, "corr-d", models.SystemActor)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	f.balances.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReverse_UnknownCorrelation(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture()

	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", mock.Anything).Return(nil)
	f.uow.On("Rollback").Return(nil)

	f.ledger.On("GetByCorrelationID", mock.Anything, "corr-x").Return([]*models.LedgerEntry{}, nil)

	err := f.engine.Reverse(ctx, "corr-x", models.SystemActor)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
