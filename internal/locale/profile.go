// Package locale parses and formats locale-dependent numeric text.
//
// A Profile is always configured explicitly per channel. Nothing here guesses
// the convention from the shape of a string: "1.234" is one thousand two
// hundred thirty-four under pt-BR and one point two three four under en-US.
package locale

import (
	"fmt"
	"strings"
)

type Profile struct {
	Name           string `yaml:"name"`
	ThousandsSep   string `yaml:"thousands_sep"`
	DecimalSep     string `yaml:"decimal_sep"`
	CurrencySymbol string `yaml:"currency_symbol"`
	Decimals       int32  `yaml:"decimals"`
}

var (
	PtBR  = Profile{Name: "pt-BR", ThousandsSep: ".", DecimalSep: ",", CurrencySymbol: "R$", Decimals: 2}
	EnUS  = Profile{Name: "en-US", ThousandsSep: ",", DecimalSep: ".", CurrencySymbol: "$", Decimals: 2}
	Plain = Profile{Name: "plain", ThousandsSep: "", DecimalSep: ".", Decimals: 2}
)

var builtin = map[string]Profile{
	"pt-br": PtBR,
	"en-us": EnUS,
	"plain": Plain,
}

// Lookup returns a built-in profile by name (case-insensitive).
func Lookup(name string) (Profile, error) {
	p, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown locale profile %q", name)
	}
	return p, nil
}

func (p Profile) Validate() error {
	if p.DecimalSep == "" {
		return fmt.Errorf("profile %s: decimal separator required", p.Name)
	}
	if p.DecimalSep == p.ThousandsSep {
		return fmt.Errorf("profile %s: decimal and thousands separators must differ", p.Name)
	}
	if strings.ContainsAny(p.DecimalSep+p.ThousandsSep, "0123456789-") {
		return fmt.Errorf("profile %s: separators cannot be digits or '-'", p.Name)
	}
	if p.Decimals < 0 {
		return fmt.Errorf("profile %s: decimals must be >= 0", p.Name)
	}
	return nil
}
