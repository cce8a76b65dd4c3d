package service

import (
	"context"
	"time"

	"lockbank/events"
	"lockbank/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, externalID, username string, platform models.Platform) (*models.Account, error) {
	args := m.Called(ctx, externalID, username, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateStatus(ctx context.Context, id int64, status models.AccountStatus, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

// MockBalanceRepository is a mock implementation of BalanceRepository
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) GetBalance(ctx context.Context, accountID int64, currency models.Currency) (*models.BalanceRecord, error) {
	args := m.Called(ctx, accountID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceRecord), args.Error(1)
}

func (m *MockBalanceRepository) GetBalances(ctx context.Context, accountID int64) ([]*models.BalanceRecord, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceRecord), args.Error(1)
}

func (m *MockBalanceRepository) ApplyDelta(ctx context.Context, accountID int64, currency models.Currency, delta int64, expectedVersion *int64) (*models.BalanceRecord, error) {
	args := m.Called(ctx, accountID, currency, delta, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceRecord), args.Error(1)
}

// MockRateRepository is a mock implementation of RateRepository
type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) Insert(ctx context.Context, currency models.Currency, rate int64, author string) (*models.ConversionRate, error) {
	args := m.Called(ctx, currency, rate, author)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversionRate), args.Error(1)
}

func (m *MockRateRepository) CurrentRate(ctx context.Context, currency models.Currency, asOf time.Time) (*models.ConversionRate, error) {
	args := m.Called(ctx, currency, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversionRate), args.Error(1)
}

func (m *MockRateRepository) History(ctx context.Context, currency models.Currency, limit int) ([]*models.ConversionRate, error) {
	args := m.Called(ctx, currency, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversionRate), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) ReadRange(ctx context.Context, accountID int64, from, to int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) ReadRecent(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) GetByCorrelationID(ctx context.Context, correlationID string) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) SumDeltas(ctx context.Context, accountID int64, currency models.Currency) (int64, error) {
	args := m.Called(ctx, accountID, currency)
	return args.Get(0).(int64), args.Error(1)
}

// MockIdempotencyRepository is a mock implementation of IdempotencyRepository
type MockIdempotencyRepository struct {
	mock.Mock
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, key string, notBefore time.Time) (*models.IdempotencyRecord, error) {
	args := m.Called(ctx, key, notBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IdempotencyRecord), args.Error(1)
}

func (m *MockIdempotencyRepository) Insert(ctx context.Context, record *models.IdempotencyRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockIdempotencyRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repositories are
// injected with SetRepositories so tests share one set of repo mocks between
// the pool path and the transactional path.
type MockUnitOfWork struct {
	mock.Mock

	accounts    AccountRepository
	balances    BalanceRepository
	rates       RateRepository
	ledger      LedgerRepository
	idempotency IdempotencyRepository
	eventBus    EventPublisher
}

func (m *MockUnitOfWork) SetRepositories(
	accounts AccountRepository,
	balances BalanceRepository,
	rates RateRepository,
	ledger LedgerRepository,
	idempotency IdempotencyRepository,
	eventBus EventPublisher,
) {
	m.accounts = accounts
	m.balances = balances
	m.rates = rates
	m.ledger = ledger
	m.idempotency = idempotency
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository         { return m.accounts }
func (m *MockUnitOfWork) BalanceRepository() BalanceRepository         { return m.balances }
func (m *MockUnitOfWork) RateRepository() RateRepository               { return m.rates }
func (m *MockUnitOfWork) LedgerRepository() LedgerRepository           { return m.ledger }
func (m *MockUnitOfWork) IdempotencyRepository() IdempotencyRepository { return m.idempotency }
func (m *MockUnitOfWork) EventBus() EventPublisher                     { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockFraudGuard is a mock implementation of FraudGuard
type MockFraudGuard struct {
	mock.Mock
}

func (m *MockFraudGuard) Check(ctx context.Context, account *models.Account, op models.OperationKind, amount int64) error {
	args := m.Called(ctx, account, op, amount)
	return args.Error(0)
}

func (m *MockFraudGuard) Flag(ctx context.Context, accountID int64, reason string, actor models.Actor) error {
	args := m.Called(ctx, accountID, reason, actor)
	return args.Error(0)
}

func (m *MockFraudGuard) Unflag(ctx context.Context, accountID int64, actor models.Actor) error {
	args := m.Called(ctx, accountID, actor)
	return args.Error(0)
}

func (m *MockFraudGuard) State(ctx context.Context, accountID int64) (*models.FraudState, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FraudState), args.Error(1)
}

// MockRateLimiter is a mock implementation of RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(subject string, class models.OperationClass, cost int) error {
	args := m.Called(subject, class, cost)
	return args.Error(0)
}

// MockConversionEngine is a mock implementation of ConversionEngine
type MockConversionEngine struct {
	mock.Mock
}

func (m *MockConversionEngine) ConvertWithin(ctx context.Context, uow UnitOfWork, account *models.Account, source models.Currency, amount int64, actor models.Actor) (*models.ConversionResult, error) {
	args := m.Called(ctx, uow, account, source, amount, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversionResult), args.Error(1)
}

func (m *MockConversionEngine) Reverse(ctx context.Context, correlationID string, actor models.Actor) error {
	args := m.Called(ctx, correlationID, actor)
	return args.Error(0)
}
