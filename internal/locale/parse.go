package locale

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/models"
)

// ErrEmpty is returned for blank input. Callers treat it as an absent value.
var ErrEmpty = errors.New("empty value")

var hundred = decimal.NewFromInt(100)

// ParseCurrency parses a money amount, e.g. "R$ 1.234,56" under PtBR.
func ParseCurrency(p Profile, raw string) (decimal.Decimal, error) {
	s := strip(raw, p.CurrencySymbol)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	return parseNumber(p, raw, s)
}

// ParseCount parses an integer counter. A fractional part is only accepted
// when it is all zeros ("1.234,00").
func ParseCount(p Profile, raw string) (int64, error) {
	s := strip(raw, "")
	if s == "" {
		return 0, ErrEmpty
	}
	d, err := parseNumber(p, raw, s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, malformed(p, raw, "count has a fractional part")
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, malformed(p, raw, "count out of range")
	}
	return d.IntPart(), nil
}

// ParsePercentage parses percent points ("12,5%" or "12,5") into a 0..1
// ratio.
func ParsePercentage(p Profile, raw string) (decimal.Decimal, error) {
	s := strip(raw, "%")
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	d, err := parseNumber(p, raw, s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Div(hundred), nil
}

func strip(raw, symbol string) string {
	s := strings.TrimSpace(raw)
	if symbol != "" {
		s = strings.Replace(s, symbol, "", 1)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
}

// parseNumber validates s against the profile and converts it to a
// canonical "-1234.56" string before handing it to decimal.
func parseNumber(p Profile, raw, s string) (decimal.Decimal, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	intPart, frac := s, ""
	if i := strings.Index(s, p.DecimalSep); i >= 0 {
		intPart, frac = s[:i], s[i+len(p.DecimalSep):]
		if frac == "" {
			return decimal.Zero, malformed(p, raw, "decimal separator without digits")
		}
		if !allDigits(frac) {
			return decimal.Zero, malformed(p, raw, "invalid fractional digits")
		}
	}
	if intPart == "" {
		return decimal.Zero, malformed(p, raw, "missing integer digits")
	}

	digits, err := ungroup(p, intPart)
	if err != nil {
		return decimal.Zero, malformed(p, raw, err.Error())
	}

	canon := digits
	if frac != "" {
		canon += "." + frac
	}
	if neg {
		canon = "-" + canon
	}
	d, err := decimal.NewFromString(canon)
	if err != nil {
		return decimal.Zero, malformed(p, raw, err.Error())
	}
	return d, nil
}

// ungroup removes thousands separators, requiring 1-3 leading digits and
// exact groups of three after that.
func ungroup(p Profile, s string) (string, error) {
	if p.ThousandsSep == "" || !strings.Contains(s, p.ThousandsSep) {
		if !allDigits(s) {
			return "", errors.New("invalid digits")
		}
		return s, nil
	}
	groups := strings.Split(s, p.ThousandsSep)
	if l := len(groups[0]); l == 0 || l > 3 || !allDigits(groups[0]) {
		return "", errors.New("bad leading digit group")
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return "", errors.New("bad digit group " + g)
		}
	}
	return strings.Join(groups, ""), nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func malformed(p Profile, raw, reason string) error {
	return &models.MalformedValueError{Raw: raw, Profile: p.Name, Reason: reason}
}
