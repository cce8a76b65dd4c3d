package common

import (
	"fmt"
	"strings"
	"time"

	"lockbank/models"
)

// FormatAmount formats an amount with thousand separators
func FormatAmount(amount int64) string {
	str := fmt.Sprintf("%d", amount)

	n := len(str)
	if n <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}

	return result.String()
}

// FormatCurrency renders an amount with its currency suffix,
// e.g. "1,250 WL" or "Rp 40,000"
func FormatCurrency(amount int64, currency models.Currency) string {
	if currency == models.CurrencyIDR {
		return "Rp " + FormatAmount(amount)
	}
	return FormatAmount(amount) + " " + strings.ToUpper(string(currency))
}

// FormatLocks renders a WL amount in mixed lock denominations,
// e.g. 12345 WL -> "1 BGL 23 DL 45 WL"
func FormatLocks(wl int64) string {
	bgl := wl / (models.WLPerDL * models.DLPerBGL)
	rem := wl % (models.WLPerDL * models.DLPerBGL)
	dl := rem / models.WLPerDL
	rem = rem % models.WLPerDL

	var parts []string
	if bgl > 0 {
		parts = append(parts, fmt.Sprintf("%d BGL", bgl))
	}
	if dl > 0 {
		parts = append(parts, fmt.Sprintf("%d DL", dl))
	}
	if rem > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d WL", rem))
	}
	return strings.Join(parts, " ")
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays
// in the user's local timezone. Format types: "t" = short time, "T" = long
// time, "d" = short date, "D" = long date, "f" = short date/time, "F" = long
// date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}
