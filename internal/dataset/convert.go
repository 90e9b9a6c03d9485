package dataset

// convert.go parses the messy reality of user-provided cell text:
//   - Numbers with signs, decimals, and exponents
//   - Currency symbols, thousands separators, and accounting negatives "(12.50)"
//   - Dates in US, EU, ISO, and long-form layouts
//   - Boolean words (yes/no, true/false)
//   - Email addresses and phone numbers
//
// Every Parse* function reports ok=false instead of returning an error;
// callers count unparseable cells as defects rather than failing.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// numericRegex validates plain numeric text: integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// currencyBodyRegex matches the amount part of a currency value once symbols
// and signs have been removed. Thousands separators must be well-formed.
var currencyBodyRegex = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d+)?$`)

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

var phoneCharsRegex = regexp.MustCompile(`^\+?[0-9\s().\-]+$`)

var currencySymbols = []string{"$", "€", "£", "¥"}

// ParseNumber parses plain numeric text.
// Integers with leading zeros ("00123") and explicit plus signs ("+4420...")
// are rejected so identifiers, postal codes, and phone numbers keep their
// text form.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) || strings.HasPrefix(s, "+") {
		return 0, false
	}
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseBool accepts true/false and yes/no in any case.
// Single letters and 1/0 are deliberately not booleans; they are too
// often codes or numbers.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	default:
		return false, false
	}
}

// ParseCurrency parses a monetary amount with an optional currency symbol,
// thousands separators, and accounting-style negatives.
func ParseCurrency(s string) (decimal.Decimal, bool) {
	amount, _, ok := parseCurrency(s)
	return amount, ok
}

// LooksLikeCurrency reports whether s parses as an amount and carries a
// currency symbol. Bare numbers are not evidence of a currency column.
func LooksLikeCurrency(s string) bool {
	_, symbol, ok := parseCurrency(s)
	return ok && symbol
}

func parseCurrency(s string) (decimal.Decimal, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}

	symbol := false
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			symbol = true
			break
		}
		if strings.HasSuffix(s, sym) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sym))
			symbol = true
			break
		}
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}

	if !currencyBodyRegex.MatchString(s) {
		return decimal.Decimal{}, false, false
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false, false
	}
	if negative {
		d = d.Neg()
	}
	return d, symbol, true
}

// ParseDate parses a date in any common layout.
// Plain numbers are never dates, and years outside 1000-9999 are rejected.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if numericRegex.MatchString(s) {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() < 1000 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ParseEmail returns the normalized (trimmed, lowercased) address.
func ParseEmail(s string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if !emailRegex.MatchString(normalized) {
		return "", false
	}
	return normalized, true
}

// ParsePhone returns the phone number in a canonical layout:
//
//	7 digits              -> 555-1234
//	10 digits             -> (555) 123-4567
//	11 digits, leading 1  -> +1 (555) 123-4567
//	otherwise (8-15)      -> digits only, keeping a leading '+'
//
// Canonical output parses back to itself.
func ParsePhone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !phoneCharsRegex.MatchString(s) {
		return "", false
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}

	switch {
	case len(digits) == 7:
		return digits[:3] + "-" + digits[3:], true
	case len(digits) == 10:
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:], true
	case len(digits) == 11 && digits[0] == '1':
		return "+1 (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:], true
	case strings.HasPrefix(s, "+"):
		return "+" + digits, true
	default:
		return digits, true
	}
}
