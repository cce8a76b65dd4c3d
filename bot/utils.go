package bot

import (
	"errors"
	"time"

	"lockbank/models"

	"github.com/bwmarrin/discordgo"
)

// GetDisplayName returns the server-specific display name for a user,
// falling back to the username
func GetDisplayName(s *discordgo.Session, guildID, userID string) string {
	member, err := s.GuildMember(guildID, userID)
	if err == nil && member != nil {
		if member.Nick != "" {
			return member.Nick
		}
		if member.User != nil {
			return member.User.Username
		}
	}

	user, err := s.User(userID)
	if err == nil && user != nil {
		return user.Username
	}

	return "Unknown"
}

// friendlyError maps an engine failure onto a message safe to show in chat.
// Internal detail stays in the logs.
func friendlyError(err error) string {
	var denied *models.FraudDeniedError
	if errors.As(err, &denied) {
		return "This transaction was declined."
	}
	var limited *models.RateLimitedError
	if errors.As(err, &limited) {
		return "You're doing that too fast. Try again in " + limited.RetryAfter.Round(time.Second).String() + "."
	}

	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		return "You don't have enough for that."
	case errors.Is(err, models.ErrNoRateConfigured):
		return "No conversion rate is set for that lock yet."
	case errors.Is(err, models.ErrAccountSuspended):
		return "That account is suspended."
	case errors.Is(err, models.ErrAccountNotFound):
		return "Account not found."
	case errors.Is(err, models.ErrPlatformNotEligible), errors.Is(err, models.ErrCurrencyNotAllowed):
		return "That account can't hold this currency."
	case errors.Is(err, models.ErrInvalidAmount):
		return "Amount must be a positive number."
	case errors.Is(err, models.ErrInvalidCurrency):
		return "Unknown currency."
	default:
		return "Something went wrong. Please try again."
	}
}
