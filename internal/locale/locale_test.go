package locale

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adrecon/internal/models"
)

func TestParseCurrency(t *testing.T) {
	cases := []struct {
		name string
		p    Profile
		raw  string
		want string
	}{
		{"ptbr symbol", PtBR, "R$ 1.234,56", "1234.56"},
		{"ptbr nbsp", PtBR, "R$ 1.000,00", "1000"},
		{"ptbr no grouping", PtBR, "999,9", "999.9"},
		{"ptbr millions", PtBR, "1.234.567", "1234567"},
		{"enus", EnUS, "$1,234.56", "1234.56"},
		{"plain", Plain, "1000.00", "1000"},
		{"negative", PtBR, "-R$ 5,00", "-5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCurrency(tc.p, tc.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestParseRejectsWrongProfile(t *testing.T) {
	// same text, opposite conventions; never inferred
	_, err := ParseCurrency(PtBR, "1000.00")
	var mv *models.MalformedValueError
	require.True(t, errors.As(err, &mv))
	assert.Equal(t, "pt-BR", mv.Profile)

	_, err = ParseCurrency(EnUS, "1.234,56")
	require.True(t, errors.As(err, &mv))

	d, err := ParseCurrency(EnUS, "1.234")
	require.NoError(t, err)
	assert.Equal(t, "1.234", d.String())

	d, err = ParseCurrency(PtBR, "1.234")
	require.NoError(t, err)
	assert.Equal(t, "1234", d.String())
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"abc", "1,2,3", "12.34.5", "R$", "1.2345", ",50", "10,", "--1", "1 000x"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseCurrency(PtBR, raw)
			require.Error(t, err)
			if raw == "R$" {
				assert.ErrorIs(t, err, ErrEmpty)
				return
			}
			var mv *models.MalformedValueError
			assert.True(t, errors.As(err, &mv), "want MalformedValueError, got %v", err)
		})
	}
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount(PtBR, "50.000")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), n)

	n, err = ParseCount(PtBR, "1.234,00")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), n)

	n, err = ParseCount(Plain, "0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = ParseCount(PtBR, "12,5")
	var mv *models.MalformedValueError
	assert.True(t, errors.As(err, &mv))

	_, err = ParseCount(PtBR, "  ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParsePercentage(t *testing.T) {
	d, err := ParsePercentage(PtBR, "12,5%")
	require.NoError(t, err)
	assert.Equal(t, "0.125", d.String())

	d, err = ParsePercentage(EnUS, "100%")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(1)))

	_, err = ParsePercentage(EnUS, "%")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.234,56", FormatDecimal(PtBR, decimal.RequireFromString("1234.56"), 2))
	assert.Equal(t, "1,234.56", FormatDecimal(EnUS, decimal.RequireFromString("1234.56"), 2))
	assert.Equal(t, "1.234.567,00", FormatDecimal(PtBR, decimal.NewFromInt(1234567), 2))
	assert.Equal(t, "0,00", FormatDecimal(PtBR, decimal.RequireFromString("-0.001"), 2))
	assert.Equal(t, "-12,50", FormatDecimal(PtBR, decimal.RequireFromString("-12.5"), 2))
	assert.Equal(t, "R$ 1.000,00", FormatCurrency(PtBR, decimal.NewFromInt(1000)))
	assert.Equal(t, "1000.00", FormatCurrency(Plain, decimal.NewFromInt(1000)))
	assert.Equal(t, "50.000", FormatCount(PtBR, 50000))
	assert.Equal(t, "-1,000", FormatCount(EnUS, -1000))
	assert.Equal(t, "999", FormatCount(PtBR, 999))
	assert.Equal(t, "1,14%", FormatPercent(PtBR, decimal.RequireFromString("0.0114285714"), 2))
}

func TestCurrencyRoundTrip(t *testing.T) {
	for _, p := range []Profile{PtBR, EnUS, Plain} {
		for _, s := range []string{"0,00", "1,00", "12,34", "999,99", "1.000,00", "12.345.678,90"} {
			canon := FormatCurrency(p, decimal.RequireFromString(toPlain(s)))
			got, err := ParseCurrency(p, canon)
			require.NoError(t, err, canon)
			assert.Equal(t, canon, FormatCurrency(p, got), "profile %s", p.Name)
		}
	}
}

// toPlain converts the pt-BR fixture text into decimal input.
func toPlain(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.':
		case ',':
			out = append(out, '.')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

func TestLookup(t *testing.T) {
	p, err := Lookup("PT-br")
	require.NoError(t, err)
	assert.Equal(t, PtBR, p)

	_, err = Lookup("fr-FR")
	assert.Error(t, err)

	assert.NoError(t, PtBR.Validate())
	assert.Error(t, Profile{Name: "x", DecimalSep: ".", ThousandsSep: "."}.Validate())
	assert.Error(t, Profile{Name: "x"}.Validate())
}
