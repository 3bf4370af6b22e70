package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMinor renders an amount of minor units (cents) as a fixed two decimal string.
func FormatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// FormatMoney prefixes FormatMinor with a symbol for the currencies the storefront prices in.
func FormatMoney(amount int64, currency string) string {
	switch strings.ToUpper(currency) {
	case "USD":
		return "$" + FormatMinor(amount)
	case "EUR":
		return "€" + FormatMinor(amount)
	case "GBP":
		return "£" + FormatMinor(amount)
	default:
		return strings.ToUpper(currency) + " " + FormatMinor(amount)
	}
}
