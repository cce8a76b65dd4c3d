package models

import "fmt"

// Currency identifies one of the four supported currencies.
// Amounts are always integer minor units; there are no fractional locks
// and IDR is tracked in whole rupiah.
type Currency string

const (
	CurrencyWL  Currency = "wl"  // World Lock
	CurrencyDL  Currency = "dl"  // Diamond Lock
	CurrencyBGL Currency = "bgl" // Blue Gem Lock
	CurrencyIDR Currency = "idr" // Indonesian Rupiah (fiat)
)

// In-game denominations.
const (
	WLPerDL  = 100
	DLPerBGL = 100
)

// GameCurrencies lists the three in-game currencies in ascending value order.
var GameCurrencies = []Currency{CurrencyWL, CurrencyDL, CurrencyBGL}

// AllCurrencies lists every currency a game-linked account can hold.
var AllCurrencies = []Currency{CurrencyWL, CurrencyDL, CurrencyBGL, CurrencyIDR}

// IsGame reports whether the currency is one of the three game currencies.
func (c Currency) IsGame() bool {
	return c == CurrencyWL || c == CurrencyDL || c == CurrencyBGL
}

// IsFiat reports whether the currency is the fiat currency.
func (c Currency) IsFiat() bool {
	return c == CurrencyIDR
}

// Valid reports whether the currency code is known.
func (c Currency) Valid() bool {
	return c.IsGame() || c.IsFiat()
}

// ParseCurrency converts a wire/string code into a Currency.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(code)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown currency %q", ErrInvalidCurrency, code)
	}
	return c, nil
}
