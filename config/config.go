package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken   string
	DiscordGuildID string

	// Database configuration
	DatabaseURL string

	// Fraud guard configuration. Thresholds are business configuration, not
	// structural constants.
	FraudWindow         time.Duration // trailing window for velocity counters
	FraudMaxOpsInWindow int           // per-operation-kind attempt ceiling within the window
	FraudAmountCeilings map[string]int64

	// Rate limiter configuration per operation class
	RateLimitCapacity map[string]int
	RateLimitRefill   map[string]float64 // tokens per second
	RateLimitIdleTTL  time.Duration

	// Transaction engine configuration
	IdempotencyRetention  time.Duration
	MutationRetryAttempts int

	// Environment
	Environment string // "development" or "production"
}

// Default per-operation amount ceilings, in minor units of the operation's
// currency.
var defaultAmountCeilings = map[string]int64{
	"deposit":  1_000_000,
	"withdraw": 500_000,
	"transfer": 500_000,
	"convert":  100_000,
	"purchase": 1_000_000,
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Discord
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID: os.Getenv("DISCORD_GUILD_ID"),

		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Fraud guard defaults
		FraudWindow:         time.Minute,
		FraudMaxOpsInWindow: 30,
		FraudAmountCeilings: defaultAmountCeilings,

		// Rate limiter defaults
		RateLimitCapacity: map[string]int{
			"mutation":   10,
			"transfer":   5,
			"conversion": 5,
		},
		RateLimitRefill: map[string]float64{
			"mutation":   2,
			"transfer":   1,
			"conversion": 0.5,
		},
		RateLimitIdleTTL: 10 * time.Minute,

		// Engine defaults
		IdempotencyRetention:  24 * time.Hour,
		MutationRetryAttempts: 3,

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if window := os.Getenv("FRAUD_WINDOW_SECONDS"); window != "" {
		if parsed, err := strconv.Atoi(window); err == nil && parsed > 0 {
			config.FraudWindow = time.Duration(parsed) * time.Second
		}
	}
	if maxOps := os.Getenv("FRAUD_MAX_OPS_IN_WINDOW"); maxOps != "" {
		if parsed, err := strconv.Atoi(maxOps); err == nil && parsed > 0 {
			config.FraudMaxOpsInWindow = parsed
		}
	}
	if retention := os.Getenv("IDEMPOTENCY_RETENTION_HOURS"); retention != "" {
		if parsed, err := strconv.Atoi(retention); err == nil && parsed > 0 {
			config.IdempotencyRetention = time.Duration(parsed) * time.Hour
		}
	}

	// Per-operation ceilings: FRAUD_CEILINGS="deposit=1000000,convert=50000"
	if ceilings := os.Getenv("FRAUD_CEILINGS"); ceilings != "" {
		parsed := make(map[string]int64, len(defaultAmountCeilings))
		for k, v := range defaultAmountCeilings {
			parsed[k] = v
		}
		for _, pair := range strings.Split(ceilings, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(parts) != 2 {
				continue
			}
			if value, err := strconv.ParseInt(parts[1], 10, 64); err == nil && value > 0 {
				parsed[parts[0]] = value
			}
		}
		config.FraudAmountCeilings = parsed
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
