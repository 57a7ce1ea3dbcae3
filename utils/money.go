package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies lists ISO codes whose minor unit is the whole unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"XOF": true,
	"XAF": true,
}

// CurrencyExponent returns the number of minor-unit digits for an ISO
// currency code (2 for USD/EUR/INR, 0 for JPY and friends).
func CurrencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// RoundToCurrency rounds an amount to the currency's minor-unit precision
// using banker's rounding (round half to even). Commission totals are
// reconciled against real money, so the rounding direction must be the same
// everywhere an amount is computed.
func RoundToCurrency(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(CurrencyExponent(currency))
}

// Percentage computes amount * percent / 100 rounded to the currency's
// precision. This is the single place commission arithmetic happens.
func Percentage(amount float64, percent float64, currency string) float64 {
	result := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100))
	rounded, _ := RoundToCurrency(result, currency).Float64()
	return rounded
}

// SumRounded adds a list of already-rounded amounts without accumulating
// float error, returning the total at currency precision.
func SumRounded(amounts []float64, currency string) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	result, _ := RoundToCurrency(total, currency).Float64()
	return result
}
