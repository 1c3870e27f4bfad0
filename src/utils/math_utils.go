package utils

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// FormatWithParenthesis renders negative values as "(12.34)" the way tax forms expect.
func FormatWithParenthesis(value decimal.Decimal, places int32) string {
	if value.IsNegative() {
		return "(" + value.Abs().StringFixed(places) + ")"
	}
	return value.StringFixed(places)
}

// CleanDecimalString renders an amount without trailing zeros, rounded to 12 places.
func CleanDecimalString(value decimal.Decimal) string {
	return value.Round(12).String()
}

// ParseFormNumber reads a form amount that may use parenthesis for negatives and carry
// currency symbols or thousands separators. Empty input is zero.
func ParseFormNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, "(", "-")
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
