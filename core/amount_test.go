package core

import (
	"math"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestComputeLineAmount(t *testing.T) {
	tests := []struct {
		name     string
		line     Line
		expected float64
	}{
		{
			name:     "unit price times quantity",
			line:     Line{UnitPrice: 1500, Quantity: 3, Currency: "CRC"},
			expected: 4500,
		},
		{
			name:     "direct total wins over unit price",
			line:     Line{TotalAmount: 999, UnitPrice: 1500, Quantity: 3},
			expected: 999,
		},
		{
			name:     "non-positive total falls back to unit price",
			line:     Line{TotalAmount: -5, UnitPrice: 10, Quantity: 2},
			expected: 20,
		},
		{
			name:     "discount tax other taxes and freight",
			line:     Line{UnitPrice: 100, Quantity: 10, Discount: 50, Tax: 123.5, OtherTaxes: 10, Freight: 25},
			expected: 1108.5,
		},
		{
			name:     "negative discount increases amount",
			line:     Line{UnitPrice: 100, Quantity: 1, Discount: -20},
			expected: 120,
		},
		{
			name:     "usd converted with row exchange rate",
			line:     Line{UnitPrice: 10, Quantity: 2, Currency: "USD", ExchangeRate: 500},
			expected: 10000,
		},
		{
			name:     "usd with zero exchange rate is not converted",
			line:     Line{UnitPrice: 1000, Quantity: 2, Currency: "USD", ExchangeRate: 0},
			expected: 2000,
		},
		{
			name:     "usd total converted",
			line:     Line{TotalAmount: 3, Currency: "usd", ExchangeRate: 510.25},
			expected: 1530.75,
		},
		{
			name:     "crc ignores exchange rate",
			line:     Line{UnitPrice: 10, Quantity: 2, Currency: "CRC", ExchangeRate: 500},
			expected: 20,
		},
		{
			name:     "missing price",
			line:     Line{Quantity: 7},
			expected: 0,
		},
		{
			name:     "zero quantity",
			line:     Line{UnitPrice: 7},
			expected: 0,
		},
		{
			name:     "discount larger than subtotal clamps to zero",
			line:     Line{UnitPrice: 10, Quantity: 1, Discount: 50},
			expected: 0,
		},
		{
			name:     "nan and inf inputs are ignored",
			line:     Line{UnitPrice: math.NaN(), Quantity: math.Inf(1), Freight: 5},
			expected: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, ComputeLineAmount(tt.line))
		})
	}
}

func TestComputeLineAmount_NeverNegativeOrNonFinite(t *testing.T) {
	values := []float64{-1e12, -3.5, -1, 0, 0.1, 1, 7.25, 1e9, math.NaN(), math.Inf(-1), math.Inf(1)}
	currencies := []string{"CRC", "USD", ""}

	for _, price := range values {
		for _, qty := range values {
			for _, adj := range values {
				for _, currency := range currencies {
					line := Line{
						UnitPrice:    price,
						Quantity:     qty,
						Discount:     adj,
						Tax:          -adj,
						Freight:      adj,
						Currency:     currency,
						ExchangeRate: qty,
					}
					amount := ComputeLineAmount(line)
					if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
						t.Fatalf("ComputeLineAmount(%+v) = %v, want finite >= 0", line, amount)
					}
				}
			}
		}
	}
}

func TestComputeLineAmount_Deterministic(t *testing.T) {
	line := Line{UnitPrice: 0.1, Quantity: 3, Tax: 0.2, Currency: "USD", ExchangeRate: 537.33}
	first := ComputeLineAmount(line)
	for i := 0; i < 100; i++ {
		check.Equal(t, first, ComputeLineAmount(line))
	}
}

func TestNormalizeCurrency(t *testing.T) {
	check.Equal(t, CurrencyUSD, NormalizeCurrency(" usd "))
	check.Equal(t, CurrencyUSD, NormalizeCurrency("Dólares"))
	check.Equal(t, CurrencyCRC, NormalizeCurrency(""))
	check.Equal(t, CurrencyCRC, NormalizeCurrency("CRC"))
}

func TestSumAmounts(t *testing.T) {
	check.Equal(t, 0.3, SumAmounts(0.1, 0.2))
	check.Equal(t, 0.0, SumAmounts())
	check.Equal(t, 5.0, SumAmounts(5, math.NaN()))
}
