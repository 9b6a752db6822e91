package locale

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatDecimal renders d with a fixed number of places using the profile's
// separators: 1234.5 -> "1.234,50" under PtBR.
func FormatDecimal(p Profile, d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	out := group(intPart, p.ThousandsSep)
	if frac != "" {
		out += p.DecimalSep + frac
	}
	if neg && strings.Trim(intPart+frac, "0") != "" {
		out = "-" + out
	}
	return out
}

func FormatCurrency(p Profile, d decimal.Decimal) string {
	return FormatMoney(p, d, p.Decimals)
}

// FormatMoney is FormatCurrency with an explicit number of places.
func FormatMoney(p Profile, d decimal.Decimal, places int32) string {
	v := FormatDecimal(p, d, places)
	if p.CurrencySymbol == "" {
		return v
	}
	return p.CurrencySymbol + " " + v
}

func FormatCount(p Profile, n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return "-" + group(s[1:], p.ThousandsSep)
	}
	return group(s, p.ThousandsSep)
}

// FormatPercent renders a 0..1 ratio as percent points: 0.0114 -> "1,14%".
func FormatPercent(p Profile, ratio decimal.Decimal, places int32) string {
	return FormatDecimal(p, ratio.Mul(hundred), places) + "%"
}

func group(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
