package core

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Licitación Pública  ", "licitacion publica"},
		{"MUNICIPALIDAD DE SAN JOSÉ", "municipalidad de san jose"},
		{"Año\tFiscal", "ano fiscal"},
		{"Ñandú", "nandu"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			check.Equal(t, tt.expected, NormalizeText(tt.input))
		})
	}
}

func TestParseFlexibleNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"1234", 1234, true},
		{"₡1.234.567,89", 1234567.89, true},
		{"$1,234,567.89", 1234567.89, true},
		{"1 234,5", 1234.5, true},
		{"13%", 13, true},
		{"0,5", 0.5, true},
		{"1,234", 1234, true},
		{"12.5", 12.5, true},
		{"₡1.500", 1500, true},
		{"12.345", 12345, true},
		{"1.500.000", 1500000, true},
		{"1,500", 1500, true},
		{"0,125", 0.125, true},
		{"0.125", 0.125, true},
		{",750", 0.75, true},
		{"-42", -42, true},
		{"(300)", -300, true},
		{"USD 15.00", 15, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"₡", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, ok := ParseFlexibleNumber(tt.input)
			check.Equal(t, tt.ok, ok)
			check.Equal(t, tt.expected, v)
		})
	}
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
		ok       bool
	}{
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"5/3/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-15T10:30:00Z", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), true},
		{"2024-03-15 10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), true},
		{"15/03/2024 08:15", time.Date(2024, 3, 15, 8, 15, 0, 0, time.UTC), true},
		{"45366", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
		{"31/02/2024", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, ok := ParseFlexibleDate(tt.input)
			check.Equal(t, tt.ok, ok)
			check.True(t, tt.expected.Equal(v))
		})
	}
}

func TestParseFlexibleBool(t *testing.T) {
	for _, s := range []string{"Sí", "SI", "true", "1", "x"} {
		v, ok := ParseFlexibleBool(s)
		check.True(t, ok)
		check.True(t, v)
	}
	for _, s := range []string{"No", "false", "0"} {
		v, ok := ParseFlexibleBool(s)
		check.True(t, ok)
		check.False(t, v)
	}
	_, ok := ParseFlexibleBool("quizás")
	check.False(t, ok)
}

func TestDigitHelpers(t *testing.T) {
	check.Equal(t, "3101123456", DigitsOnly("3-101-123456"))
	check.Equal(t, "1234", StripLeadingZeros("001234"))
	check.Equal(t, "", StripLeadingZeros("000"))
}
