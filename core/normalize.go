package core

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText folds s for case- and accent-insensitive comparison:
// lowercase, NFD-decompose, drop combining marks, collapse whitespace, trim.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	stripped := StripMarks(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(stripped))
	lastSpace := true
	for _, r := range stripped {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// StripMarks NFD-decomposes s and drops combining marks, preserving case.
func StripMarks(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitsOnly returns s with every non-digit rune removed.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripLeadingZeros removes leading '0' characters. "000" becomes "".
func StripLeadingZeros(s string) string {
	return strings.TrimLeft(s, "0")
}

var currencyTokens = []string{"₡", "$", "¢", "€", "usd", "crc", "col"}

// ParseFlexibleNumber parses numbers written with currency symbols, percent signs,
// and either "1.234,56" or "1,234.56" separator conventions. Parenthesised values
// are negative. Unparseable input yields (0, false) and never panics.
func ParseFlexibleNumber(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Map(func(r rune) rune {
		if r == '%' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}

	s = normalizeSeparators(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// normalizeSeparators rewrites s so that '.' is the only (decimal) separator.
// The right-most of ',' and '.' is taken as the decimal mark, except that a lone
// separator followed by exactly three digits is read as a thousands separator
// unless the integer part before it is empty or "0".
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma < 0 && lastDot < 0:
		return s
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || isThousandsGroup(s, lastComma) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	default:
		if strings.Count(s, ".") > 1 || isThousandsGroup(s, lastDot) {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	}
}

// isThousandsGroup reports whether the lone separator at i groups thousands:
// exactly three digits follow it and a non-zero integer part precedes it.
func isThousandsGroup(s string, i int) bool {
	if len(s)-i-1 != 3 {
		return false
	}
	intPart := s[:i]
	return intPart != "" && strings.TrimLeft(intPart, "0") != ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
}

// excelEpoch is day zero of the spreadsheet serial date system (1900 date system,
// including its fictitious 1900-02-29).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseFlexibleDate accepts DD/MM/YYYY, YYYY-MM-DD, ISO-8601 with time and
// spreadsheet serial day numbers. It returns (zero, false) when nothing matches;
// callers treat that as missing data.
func ParseFlexibleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 1 && serial < 2958466 && !strings.ContainsAny(s, "eE") {
		days := math.Floor(serial)
		frac := serial - days
		t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)))
		return t, true
	}
	return time.Time{}, false
}

// ParseFlexibleBool reads the yes/no spellings found in procurement exports.
func ParseFlexibleBool(s string) (value bool, ok bool) {
	switch NormalizeText(s) {
	case "si", "s", "yes", "y", "true", "t", "1", "x", "verdadero":
		return true, true
	case "no", "n", "false", "f", "0", "falso":
		return false, true
	}
	return false, false
}
