package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 6 // 6 decimal places keep sub-cent exchange-rate products stable

// ComputeLineAmount returns a line's amount in the base currency.
//
// Processing flow:
//  1. A positive TotalAmount is used as-is
//  2. Otherwise subtotal = UnitPrice * Quantity
//  3. subtotal = subtotal - Discount + Tax + OtherTaxes + Freight
//  4. USD rows with ExchangeRate > 0 are multiplied by the row's own rate
//  5. Non-positive or non-finite results become 0
//
// A zero result means "no usable amount", not an error.
func ComputeLineAmount(line Line) float64 {
	var amount decimal.Decimal

	if total := finite(line.TotalAmount); total > 0 {
		amount = decimal.NewFromFloat(total)
	} else {
		amount = decimal.NewFromFloat(finite(line.UnitPrice)).Mul(decimal.NewFromFloat(finite(line.Quantity)))
		amount = amount.
			Sub(decimal.NewFromFloat(finite(line.Discount))).
			Add(decimal.NewFromFloat(finite(line.Tax))).
			Add(decimal.NewFromFloat(finite(line.OtherTaxes))).
			Add(decimal.NewFromFloat(finite(line.Freight)))
	}

	if rate := finite(line.ExchangeRate); IsForeignCurrency(line.Currency) && rate > 0 {
		amount = amount.Mul(decimal.NewFromFloat(rate))
	}

	result, _ := amount.Round(monetaryPrecision).Float64()
	if !(result > 0) || math.IsInf(result, 0) {
		return 0
	}
	return result
}

// IsForeignCurrency reports whether currency denotes USD in any of the spellings
// seen in source exports.
func IsForeignCurrency(currency string) bool {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case CurrencyUSD, "US$", "DOLARES", "DÓLARES", "DOLAR", "DÓLAR":
		return true
	}
	return false
}

// NormalizeCurrency maps currency spellings to CRC or USD. Empty input is CRC.
func NormalizeCurrency(currency string) string {
	if IsForeignCurrency(currency) {
		return CurrencyUSD
	}
	return CurrencyCRC
}

// SumAmounts adds amounts with decimal arithmetic so totals do not drift with
// summation order.
func SumAmounts(amounts ...float64) float64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(finite(a)))
	}
	result, _ := sum.Round(monetaryPrecision).Float64()
	return result
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
