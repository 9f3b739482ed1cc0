// Package validation normalizes and validates user supplied transaction input.
package validation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount cleans a user-typed money string into a two decimal form.
//
// Everything except digits, '.' and ',' is dropped, so currency symbols and
// minus signs disappear. A lone comma style ("19,8") is read as a decimal
// comma; when both separators appear commas are thousands separators. If the
// result still does not parse, the sanitized string is returned as is.
func NormalizeAmount(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	sanitized := b.String()

	hasComma := strings.Contains(sanitized, ",")
	hasDot := strings.Contains(sanitized, ".")
	switch {
	case hasComma && hasDot:
		sanitized = strings.ReplaceAll(sanitized, ",", "")
	case hasComma:
		sanitized = strings.ReplaceAll(sanitized, ",", ".")
	}

	d, err := decimal.NewFromString(sanitized)
	if err != nil {
		return sanitized
	}
	return d.StringFixed(2)
}

// ParseAmount parses a validated amount string into a decimal rounded to cents.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}
