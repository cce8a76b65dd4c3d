package models

import (
	"time"
)

// Platform records where an account originated.
type Platform string

const (
	PlatformGame Platform = "game" // linked to an in-game identity via the Discord bot
	PlatformWeb  Platform = "web"  // web/app signup, fiat only
)

// AccountStatus is the lifecycle state of an account. Accounts are never
// physically deleted.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusSuspended   AccountStatus = "suspended"
	AccountStatusBlacklisted AccountStatus = "blacklisted"
)

// Account represents a ledger account shared by the bot and web surfaces.
type Account struct {
	ID              int64         `db:"id"`
	ExternalID      string        `db:"external_id"` // Discord ID for game accounts, web user ID otherwise
	Username        string        `db:"username"`
	Platform        Platform      `db:"platform"`
	Status          AccountStatus `db:"status"`
	BlacklistReason *string       `db:"blacklist_reason"`
	FlaggedAt       *time.Time    `db:"flagged_at"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// Currencies returns the currencies this account is allowed to hold.
// Web-only accounts never hold a game currency.
func (a *Account) Currencies() []Currency {
	if a.Platform == PlatformGame {
		return AllCurrencies
	}
	return []Currency{CurrencyIDR}
}

// CanHold reports whether the account may hold a balance in the currency.
func (a *Account) CanHold(c Currency) bool {
	return c.IsFiat() || a.Platform == PlatformGame
}

// IsBlacklisted reports whether the account is blocked from all mutations.
func (a *Account) IsBlacklisted() bool {
	return a.Status == AccountStatusBlacklisted
}
