package cmd

import (
	"context"
	"fmt"
	"time"

	"lockbank/bot"
	"lockbank/config"
	"lockbank/database"
	"lockbank/events"
	"lockbank/models"
	"lockbank/repository"
	"lockbank/service"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// How often expired idempotency keys are purged.
const purgeInterval = time.Hour

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting lockbank...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event bus and unit of work factory
	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Pool-backed repositories for the engine's read paths
	accounts := repository.NewAccountRepository(db)
	balances := repository.NewBalanceRepository(db)
	ledger := repository.NewLedgerRepository(db)
	rates := repository.NewRateRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	// Initialize services
	log.Info("Initializing services...")
	fraudGuard := service.NewFraudGuard(uowFactory, service.FraudGuardConfig{
		Window:         cfg.FraudWindow,
		MaxOpsInWindow: cfg.FraudMaxOpsInWindow,
		AmountCeilings: amountCeilings(cfg.FraudAmountCeilings),
	})

	limiter := service.NewRateLimiter(limiterClasses(cfg), cfg.RateLimitIdleTTL)
	go limiter.StartCleanup(ctx)

	rateTable := service.NewRateTable(rates)
	converter := service.NewConversionEngine(uowFactory, rateTable, eventBus)
	engine := service.NewTransactionEngine(uowFactory, accounts, balances, ledger, idempotency, fraudGuard, limiter, converter, service.EngineConfig{
		IdempotencyRetention:  cfg.IdempotencyRetention,
		MutationRetryAttempts: cfg.MutationRetryAttempts,
	})
	accountService := service.NewAccountService(uowFactory, accounts, balances)
	adminService := service.NewAdminService(uowFactory, accounts, fraudGuard)
	log.Info("Services initialized successfully")

	go purgeLoop(ctx, engine)

	// Initialize Discord bot
	log.Info("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.DiscordGuildID,
	}, accountService, engine, adminService, eventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Info("Discord bot initialized successfully")

	// Wait for context cancellation
	log.Infof("Lockbank is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down...")
	if err := discordBot.Close(); err != nil {
		log.WithError(err).Error("Error closing Discord bot")
	}

	log.Info("Closing database connection...")
	db.Close()

	log.Info("Shutdown completed")
	return nil
}

// purgeLoop removes idempotency keys past the retention window
func purgeLoop(ctx context.Context, engine service.TransactionEngine) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := engine.PurgeExpiredIdempotencyKeys(ctx)
			if err != nil {
				log.WithError(err).Error("Error purging expired idempotency keys")
				continue
			}
			if purged > 0 {
				log.Infof("Purged %d expired idempotency keys", purged)
			}
		}
	}
}

// amountCeilings maps config ceiling keys onto the operation kinds the
// fraud guard checks against.
func amountCeilings(ceilings map[string]int64) map[models.OperationKind]int64 {
	keys := map[string]models.OperationKind{
		"deposit":  models.OperationDeposit,
		"withdraw": models.OperationWithdraw,
		"transfer": models.OperationTransferOut,
		"convert":  models.OperationConvertDebit,
		"purchase": models.OperationPurchase,
	}

	result := make(map[models.OperationKind]int64, len(ceilings))
	for key, value := range ceilings {
		if op, ok := keys[key]; ok {
			result[op] = value
		}
	}
	return result
}

func limiterClasses(cfg *config.Config) map[models.OperationClass]service.RateLimiterConfig {
	classes := make(map[models.OperationClass]service.RateLimiterConfig, len(cfg.RateLimitCapacity))
	for name, capacity := range cfg.RateLimitCapacity {
		classes[models.OperationClass(name)] = service.RateLimiterConfig{
			Capacity: capacity,
			Refill:   rate.Limit(cfg.RateLimitRefill[name]),
		}
	}
	return classes
}
