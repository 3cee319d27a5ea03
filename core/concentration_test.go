package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestHerfindahlIndex(t *testing.T) {
	tests := []struct {
		name     string
		amounts  map[string]float64
		expected float64
	}{
		{"single provider holds everything", map[string]float64{"a": 1234.5}, 1.0},
		{"two equal shares", map[string]float64{"a": 500, "b": 500}, 0.5},
		{"four equal shares", map[string]float64{"a": 1, "b": 1, "c": 1, "d": 1}, 0.25},
		{"70/30 split", map[string]float64{"a": 70, "b": 30}, 0.58},
		{"zero and negative amounts ignored", map[string]float64{"a": 10, "b": 0, "c": -5}, 1.0},
		{"empty market", map[string]float64{}, 0},
		{"all zero", map[string]float64{"a": 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, HerfindahlIndex(tt.amounts))
		})
	}
}

func TestMedian(t *testing.T) {
	_, ok := Median(nil)
	check.False(t, ok)

	m, ok := Median([]float64{9, 1, 5})
	check.True(t, ok)
	check.Equal(t, 5.0, m)

	m, _ = Median([]float64{4, 1, 3, 2})
	check.Equal(t, 2.5, m)
}

func TestPercentage(t *testing.T) {
	check.Equal(t, 50.0, Percentage(1, 2))
	check.Equal(t, 33.3333, Percentage(1, 3))
	check.Equal(t, 0.0, Percentage(3, 0))
}
