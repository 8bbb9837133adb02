// Package currencyutils parses and formats monetary amounts as they appear in
// bank notifications and statement exports.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// currency codes, symbols and every kind of space, including NBSP and narrow NBSP
	noiseRe = regexp.MustCompile(`[A-Za-z€$£¥₣₤₹₽₩\s\x{00A0}\x{202F}]`)
	// three digit groups after the first dot: 1.234.567
	dotThousandsRe = regexp.MustCompile(`^-?\d{1,3}(\.\d{3}){2,}$`)
)

// ParseAmount parses amounts such as "1'234.56", "1.234,56", "CHF -12.50" or "12.50-".
// An empty string yields zero.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, nil
	}

	standardized := StandardizeAmount(amountStr)
	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount rewrites an amount string into the form accepted by decimal.NewFromString.
func StandardizeAmount(amountStr string) string {
	s := noiseRe.ReplaceAllString(amountStr, "")
	s = strings.NewReplacer("'", "", "’", "", "−", "-").Replace(s)

	// trailing sign, as printed by some Swiss banks
	if strings.HasSuffix(s, "-") && !strings.HasPrefix(s, "-") {
		s = "-" + strings.TrimSuffix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastDot < lastComma {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case dotThousandsRe.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	return s
}

// FormatAmount renders amount with two decimals, prefixed with a currency symbol or code.
func FormatAmount(amount decimal.Decimal, currency string) string {
	formatted := amount.StringFixed(2)
	if currency == "" {
		return formatted
	}

	switch strings.ToUpper(currency) {
	case "EUR":
		return "€" + formatted
	case "USD":
		return "$" + formatted
	case "GBP":
		return "£" + formatted
	default:
		return strings.ToUpper(currency) + " " + formatted
	}
}

// AsExpense returns amount as a negative value, leaving negative amounts untouched.
func AsExpense(amount decimal.Decimal) decimal.Decimal {
	if amount.IsPositive() {
		return amount.Neg()
	}
	return amount
}
