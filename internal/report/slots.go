package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/locale"
	"github.com/AngelCh415/adrecon/internal/models"
)

// Formatter renders metric values for one output locale.
type Formatter struct {
	Profile       locale.Profile
	NotApplicable string
	PercentPlaces int32
	RatioPlaces   int32
}

func NewFormatter(p locale.Profile) Formatter {
	return Formatter{Profile: p, NotApplicable: "N/A", PercentPlaces: 2, RatioPlaces: p.Decimals}
}

func (f Formatter) na() string {
	if f.NotApplicable == "" {
		return "N/A"
	}
	return f.NotApplicable
}

func (f Formatter) money(d decimal.NullDecimal) string {
	if !d.Valid {
		return f.na()
	}
	return locale.FormatMoney(f.Profile, d.Decimal, f.RatioPlaces)
}

func (f Formatter) pct(d decimal.NullDecimal) string {
	if !d.Valid {
		return f.na()
	}
	return locale.FormatPercent(f.Profile, d.Decimal, f.PercentPlaces)
}

func (f Formatter) count(c models.Count) string {
	if !c.Valid {
		return f.na()
	}
	return locale.FormatCount(f.Profile, c.N)
}

// SlotKey turns a channel id into a placeholder prefix: "dv-360" -> "DV_360".
func SlotKey(channelID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, channelID)
}

var completionKinds = []models.CompletionKind{
	models.CompletionQuartile100,
	models.CompletionViews,
	models.CompletionImpressions,
}

// SlotMap formats every campaign and channel metric. Absent values render as
// the not-applicable text so their keys are always present.
func (f Formatter) SlotMap(m models.CampaignMetrics) models.TemplateSlotMap {
	s := f.campaignSlots(m)
	for _, cm := range m.Channels {
		fail, _ := m.Failed(cm.ChannelID)
		for k, v := range f.channelSlots(cm, fail) {
			s[k] = v
		}
	}
	return s
}

func (f Formatter) campaignSlots(m models.CampaignMetrics) models.TemplateSlotMap {
	s := models.TemplateSlotMap{
		"CAMPAIGN_ID":                      m.CampaignID,
		"CAMPAIGN_SPEND":                   f.money(decimal.NewNullDecimal(m.SpendUsed)),
		"CAMPAIGN_BUDGET":                  f.money(decimal.NewNullDecimal(m.Budget)),
		"CAMPAIGN_CLICKS":                  f.count(m.ClicksUsed),
		"CAMPAIGN_UNITS":                   f.count(m.UnitsUsed),
		"CAMPAIGN_CTR":                     f.pct(m.CTR),
		"CAMPAIGN_CPM":                     f.money(m.CPM),
		"CAMPAIGN_CPV":                     f.money(m.CPV),
		"CAMPAIGN_VTR":                     f.pct(m.VTR),
		"CAMPAIGN_PACING":                  f.pct(m.PacingPct),
		"CAMPAIGN_UTILIZATION_IMPRESSIONS": f.pct(m.UtilizationImpressions),
		"CAMPAIGN_UTILIZATION_VIEWS":       f.pct(m.UtilizationViews),
		"CHANNELS_RECONCILED":              fmt.Sprintf("%d of %d", m.Reconciled(), len(m.Channels)),
		"CHANNELS_TOTAL":                   fmt.Sprint(len(m.Channels)),
		"CHANNELS_FAILED":                  fmt.Sprint(len(m.Failures)),
	}
	for q, pct := range models.Quartiles {
		s[fmt.Sprintf("CAMPAIGN_RETENTION_%d", pct)] = f.pct(m.QuartileRetention[q])
	}
	for _, k := range completionKinds {
		key := "CAMPAIGN_UNITS_" + SlotKey(string(k))
		d, ok := m.Denominators[k]
		if !ok {
			s[key] = f.na()
			s[key+"_CHANNELS"] = f.na()
			continue
		}
		s[key] = locale.FormatCount(f.Profile, d.Units)
		s[key+"_CHANNELS"] = strings.Join(d.Channels, ", ")
	}
	return s
}

func (f Formatter) channelSlots(cm models.ChannelMetrics, fail models.ChannelFailure) models.TemplateSlotMap {
	p := SlotKey(cm.ChannelID) + "_"
	s := models.TemplateSlotMap{
		p + "SPEND":       f.money(cm.SpendUsed),
		p + "CLICKS":      f.count(cm.ClicksUsed),
		p + "UNITS":       f.count(cm.UnitsUsed),
		p + "IMPRESSIONS": f.count(cm.Impressions),
		p + "VIEWS":       f.count(cm.Views),
		p + "VISITS":      f.count(cm.Visits),
		p + "CTR":         f.pct(cm.CTR),
		p + "CPV_OR_CPM":  f.money(cm.CPVOrCPM),
		p + "VTR":         f.pct(cm.VTR),
		p + "PACING":      f.pct(cm.PacingPct),
		p + "UTILIZATION": f.pct(cm.UtilizationPct),
	}
	for q, pct := range models.Quartiles {
		s[fmt.Sprintf("%sRETENTION_%d", p, pct)] = f.pct(cm.QuartileRetention[q])
		s[fmt.Sprintf("%sQUARTILE_%d", p, pct)] = f.count(cm.Quartile[q])
	}

	s[p+"COMPLETION"] = f.na()
	if cm.Completion != models.CompletionUndefined {
		s[p+"COMPLETION"] = string(cm.Completion)
	}
	s[p+"BUDGET"], s[p+"UNITS_CONTRACTED"], s[p+"UNIT_TYPE"] = f.na(), f.na(), f.na()
	if b := cm.Baseline; b != nil {
		s[p+"BUDGET"] = f.money(decimal.NewNullDecimal(b.BudgetContracted))
		s[p+"UNITS_CONTRACTED"] = locale.FormatCount(f.Profile, b.UnitsContracted)
		s[p+"UNIT_TYPE"] = string(b.UnitType)
	}

	s[p+"STATUS"] = "OK"
	if fail.Err != nil {
		s[p+"STATUS"] = fail.Reason()
	}
	return s
}

// CheckChannelKeys rejects channel ids whose placeholders would overwrite
// each other or a campaign placeholder, e.g. "dv-360" next to "dv_360", or a
// channel named "campaign".
func CheckChannelKeys(ids []string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	f := NewFormatter(locale.Plain)
	owner := map[string]string{}
	for k := range f.campaignSlots(models.CampaignMetrics{}) {
		owner[k] = ""
	}
	for _, id := range sorted {
		keys := f.channelSlots(models.ChannelMetrics{ChannelID: id}, models.ChannelFailure{})
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			prev, taken := owner[k]
			switch {
			case !taken:
				owner[k] = id
				continue
			case prev == "":
				return &models.SchemaMismatchError{ChannelID: id, Detail: fmt.Sprintf("placeholder %s is a campaign placeholder", k)}
			case prev != id:
				return &models.SchemaMismatchError{ChannelID: id, Detail: fmt.Sprintf("placeholder %s also belongs to channel %s", k, prev)}
			}
		}
	}
	return nil
}
