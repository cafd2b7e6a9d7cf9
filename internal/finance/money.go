package finance

import (
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Currency is the symbol prefixed to every rendered amount.
const Currency = "₹"

// ParseAmount converts a captured amount such as "1,50,000.50" into a decimal.
// Thousands separators are stripped. Malformed or non-positive values report false.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// FormatWhole renders an amount rounded to an integer with thousands separators.
func FormatWhole(d decimal.Decimal) string {
	return groupThousands(d.StringFixed(0))
}

// FormatCents renders an amount with two decimals and thousands separators.
func FormatCents(d decimal.Decimal) string {
	return groupThousands(d.StringFixed(2))
}

// FormatPercent renders a percentage with one decimal, without the % sign.
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(1)
}

func groupThousands(fixed string) string {
	negative := strings.HasPrefix(fixed, "-")
	unsigned := strings.TrimPrefix(fixed, "-")
	intPart, frac, hasFrac := strings.Cut(unsigned, ".")

	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return fixed
	}
	out := humanize.BigComma(n)
	if hasFrac {
		out += "." + frac
	}
	if negative && strings.Trim(unsigned, "0.") != "" {
		out = "-" + out
	}
	return out
}
