package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one row of a channel export, columns kept in export order.
type RawRow struct {
	Headers []string
	Cells   []string
}

func NewRawRow(headers, cells []string) RawRow {
	return RawRow{Headers: headers, Cells: cells}
}

// Get returns the cell under col. ok is false when the column is not part
// of the row headers at all.
func (r RawRow) Get(col string) (string, bool) {
	for i, h := range r.Headers {
		if h == col {
			if i < len(r.Cells) {
				return r.Cells[i], true
			}
			return "", true
		}
	}
	return "", false
}

func (r RawRow) Has(col string) bool {
	_, ok := r.Get(col)
	return ok
}

// Count is an optional non-negative counter. Valid=false means the channel
// does not track the metric, which is not the same as delivering zero.
type Count struct {
	N     int64
	Valid bool
}

func CountOf(n int64) Count { return Count{N: n, Valid: true} }

// Add sums two counts; absent only if both sides are absent.
func (c Count) Add(o Count) Count {
	if !o.Valid {
		return c
	}
	if !c.Valid {
		return o
	}
	return Count{N: c.N + o.N, Valid: true}
}

// MarshalJSON renders an absent count as null.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.N)
}

func (c *Count) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = Count{}
		return nil
	}
	if err := json.Unmarshal(b, &c.N); err != nil {
		return err
	}
	c.Valid = true
	return nil
}

// CompletionKind names the canonical field a channel uses as its
// "100% complete" unit.
type CompletionKind string

const (
	CompletionUndefined   CompletionKind = ""
	CompletionQuartile100 CompletionKind = "quartile_100"
	CompletionViews       CompletionKind = "views"
	CompletionImpressions CompletionKind = "impressions"
)

func (k CompletionKind) Valid() bool {
	switch k {
	case CompletionQuartile100, CompletionViews, CompletionImpressions:
		return true
	}
	return false
}

type UnitType string

const (
	UnitImpressions UnitType = "IMPRESSIONS"
	UnitViews       UnitType = "VIEWS"
)

func (u UnitType) Valid() bool { return u == UnitImpressions || u == UnitViews }

// Quartiles in ladder order: 25, 50, 75, 100.
var Quartiles = [4]int{25, 50, 75, 100}

type CanonicalRecord struct {
	Date        time.Time
	ChannelID   string
	CreativeID  string
	Spend       decimal.NullDecimal
	Impressions Count
	Clicks      Count
	VideoStarts Count
	Quartile    [4]Count
	Views       Count
	Visits      Count
	Completion  CompletionKind
}

type ContractedBaseline struct {
	ChannelID        string          `json:"channel_id"`
	BudgetContracted decimal.Decimal `json:"budget_contracted"`
	UnitsContracted  int64           `json:"units_contracted"`
	UnitType         UnitType        `json:"unit_type"`
}

type ChannelMetrics struct {
	ChannelID   string
	Completion  CompletionKind
	Records     int
	SpendUsed   decimal.NullDecimal
	ClicksUsed  Count
	UnitsUsed   Count
	Impressions Count
	VideoStarts Count
	Views       Count
	Visits      Count
	Quartile    [4]Count

	CTR               decimal.NullDecimal
	CPVOrCPM          decimal.NullDecimal
	VTR               decimal.NullDecimal
	QuartileRetention [4]decimal.NullDecimal
	PacingPct         decimal.NullDecimal
	UtilizationPct    decimal.NullDecimal

	Baseline *ContractedBaseline
}

// ChannelFailure records why a channel's contribution is absent from the
// campaign totals.
type ChannelFailure struct {
	ChannelID string
	Err       error
}

func (f ChannelFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// DenominatorTotal documents which channels fed one completion denominator.
type DenominatorTotal struct {
	Units    int64
	Channels []string
}

type CampaignMetrics struct {
	CampaignID string
	Channels   []ChannelMetrics
	Failures   []ChannelFailure

	SpendUsed decimal.Decimal
	// ClicksUsed is absent when no reconciled channel tracks clicks.
	// UnitsUsed is absent unless every reconciled channel counts the same
	// completion kind; mixed kinds only add up per kind in Denominators.
	ClicksUsed     Count
	UnitsUsed      Count
	Budget         decimal.Decimal
	Quartile       [4]int64
	RetentionUnits int64

	CTR                    decimal.NullDecimal
	CPM                    decimal.NullDecimal
	CPV                    decimal.NullDecimal
	VTR                    decimal.NullDecimal
	QuartileRetention      [4]decimal.NullDecimal
	PacingPct              decimal.NullDecimal
	UtilizationImpressions decimal.NullDecimal
	UtilizationViews       decimal.NullDecimal

	Denominators map[CompletionKind]DenominatorTotal
}

// Reconciled is the number of channels that made it into the totals.
func (m CampaignMetrics) Reconciled() int { return len(m.Channels) - len(m.Failures) }

func (m CampaignMetrics) Failed(channelID string) (ChannelFailure, bool) {
	for _, f := range m.Failures {
		if f.ChannelID == channelID {
			return f, true
		}
	}
	return ChannelFailure{}, false
}

// TemplateSlotMap maps placeholder keys to their rendered values.
type TemplateSlotMap map[string]string

type RenderedDocument struct {
	Body  string
	Slots TemplateSlotMap
}
