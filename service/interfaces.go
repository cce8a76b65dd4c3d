package service

import (
	"context"
	"time"

	"lockbank/events"
	"lockbank/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByID retrieves an account by its internal ID
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// GetByExternalID retrieves an account by its platform identity
	GetByExternalID(ctx context.Context, externalID string) (*models.Account, error)

	// Create creates a new account with zero-initialized balance rows
	Create(ctx context.Context, externalID, username string, platform models.Platform) (*models.Account, error)

	// UpdateStatus changes an account's lifecycle status
	UpdateStatus(ctx context.Context, id int64, status models.AccountStatus, reason string) error
}

// BalanceRepository defines the interface for balance data access
type BalanceRepository interface {
	// GetBalance retrieves one (account, currency) balance record
	GetBalance(ctx context.Context, accountID int64, currency models.Currency) (*models.BalanceRecord, error)

	// GetBalances returns all balance records for an account
	GetBalances(ctx context.Context, accountID int64) ([]*models.BalanceRecord, error)

	// ApplyDelta applies a signed amount change, failing with
	// ErrInsufficientFunds, ErrVersionConflict or ErrCurrencyNotAllowed
	ApplyDelta(ctx context.Context, accountID int64, currency models.Currency, delta int64, expectedVersion *int64) (*models.BalanceRecord, error)
}

// RateRepository defines the interface for conversion rate data access
type RateRepository interface {
	// Insert appends a new immutable rate row effective immediately
	Insert(ctx context.Context, currency models.Currency, rate int64, author string) (*models.ConversionRate, error)

	// CurrentRate returns the rate row effective at asOf
	CurrentRate(ctx context.Context, currency models.Currency, asOf time.Time) (*models.ConversionRate, error)

	// History returns rate rows for a currency, newest first
	History(ctx context.Context, currency models.Currency, limit int) ([]*models.ConversionRate, error)
}

// LedgerRepository defines the interface for the append-only audit log
type LedgerRepository interface {
	// Append writes one entry and assigns its sequence number
	Append(ctx context.Context, entry *models.LedgerEntry) (int64, error)

	// ReadRange returns an account's entries within a sequence range
	ReadRange(ctx context.Context, accountID int64, from, to int64, limit int) ([]*models.LedgerEntry, error)

	// ReadRecent returns an account's newest entries, newest first
	ReadRecent(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)

	// GetByCorrelationID returns all entries of one logical operation
	GetByCorrelationID(ctx context.Context, correlationID string) ([]*models.LedgerEntry, error)

	// SumDeltas sums all entry deltas for one (account, currency)
	SumDeltas(ctx context.Context, accountID int64, currency models.Currency) (int64, error)
}

// IdempotencyRepository defines the interface for idempotency key storage
type IdempotencyRepository interface {
	// Get returns the record for a key, or nil if unused or expired
	Get(ctx context.Context, key string, notBefore time.Time) (*models.IdempotencyRecord, error)

	// Insert stores a key with its serialized result
	Insert(ctx context.Context, record *models.IdempotencyRecord) error

	// PurgeOlderThan deletes keys past the retention window
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UnitOfWork bundles the repositories over one database transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	BalanceRepository() BalanceRepository
	RateRepository() RateRepository
	LedgerRepository() LedgerRepository
	IdempotencyRepository() IdempotencyRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// FraudGuard gates every mutation. Check records the attempt in its rolling
// counters whether or not the surrounding transaction later succeeds.
type FraudGuard interface {
	// Check returns nil to allow or *models.FraudDeniedError to deny
	Check(ctx context.Context, account *models.Account, op models.OperationKind, amount int64) error

	// Flag blacklists an account; takes effect on the next Check
	Flag(ctx context.Context, accountID int64, reason string, actor models.Actor) error

	// Unflag clears a blacklist flag
	Unflag(ctx context.Context, accountID int64, actor models.Actor) error

	// State returns a snapshot of an account's fraud posture
	State(ctx context.Context, accountID int64) (*models.FraudState, error)
}

// RateLimiter is token-bucket admission control per (subject, class)
type RateLimiter interface {
	// Allow returns nil or *models.RateLimitedError with a retry-after hint
	Allow(subject string, class models.OperationClass, cost int) error
}

// RateTable exposes point-in-time conversion rate lookup
type RateTable interface {
	CurrentRate(ctx context.Context, currency models.Currency, asOf time.Time) (*models.ConversionRate, error)
}

// ConversionEngine orchestrates a currency-to-fiat conversion as one logical
// operation inside a caller-supplied unit of work
type ConversionEngine interface {
	// ConvertWithin validates eligibility, locks the rate, debits the source
	// currency and credits fiat; both entries share one correlation id
	ConvertWithin(ctx context.Context, uow UnitOfWork, account *models.Account, source models.Currency, amount int64, actor models.Actor) (*models.ConversionResult, error)

	// Reverse administratively unwinds a committed conversion with audited
	// reversal entries under the original correlation id
	Reverse(ctx context.Context, correlationID string, actor models.Actor) error
}

// TransactionEngine is the top-level orchestrator: every balance-affecting
// request passes fraud check, then rate limit, then the atomic
// mutation+audit unit
type TransactionEngine interface {
	Submit(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error)

	Deposit(ctx context.Context, accountID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error)
	Withdraw(ctx context.Context, accountID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error)
	Transfer(ctx context.Context, fromID, toID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error)
	Convert(ctx context.Context, accountID int64, source models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error)
	SettlePurchase(ctx context.Context, accountID int64, currency models.Currency, amount int64, idempotencyKey string, actor models.Actor) (*models.TransactionResult, error)

	// Read path for reporting/dashboard consumers
	GetBalance(ctx context.Context, accountID int64, currency models.Currency) (*models.BalanceRecord, error)
	ReadAuditRange(ctx context.Context, accountID int64, from, to int64, limit int) ([]*models.LedgerEntry, error)
	ReadRecentActivity(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)

	// PurgeExpiredIdempotencyKeys removes keys past the retention window
	PurgeExpiredIdempotencyKeys(ctx context.Context) (int64, error)
}

// AccountService provisions and reads accounts
type AccountService interface {
	// GetOrCreateAccount retrieves an existing account or provisions a new
	// one with zero balances and initial ledger entries
	GetOrCreateAccount(ctx context.Context, externalID, username string, platform models.Platform) (*models.Account, error)

	GetAccount(ctx context.Context, externalID string) (*models.Account, error)
	GetBalances(ctx context.Context, accountID int64) ([]*models.BalanceRecord, error)
}

// AdminService is the administrative action surface. Callers arrive with an
// already-verified admin identity.
type AdminService interface {
	// SetRate inserts a new conversion rate row effective immediately
	SetRate(ctx context.Context, currency models.Currency, rate int64, author string) (*models.ConversionRate, error)

	// RateHistory lists rate rows for a currency, newest first
	RateHistory(ctx context.Context, currency models.Currency, limit int) ([]*models.ConversionRate, error)

	Flag(ctx context.Context, accountID int64, reason string, author string) error
	Unflag(ctx context.Context, accountID int64, author string) error
	Suspend(ctx context.Context, accountID int64, author string) error
	Reinstate(ctx context.Context, accountID int64, author string) error
}
