// Package normalize maps channel export rows onto canonical delivery records.
package normalize

import (
	"fmt"
	"sort"

	"github.com/AngelCh415/adrecon/internal/locale"
	"github.com/AngelCh415/adrecon/internal/models"
)

// Field is a canonical record field a channel column can feed.
type Field string

const (
	FieldDate        Field = "date"
	FieldCreativeID  Field = "creative_id"
	FieldSpend       Field = "spend"
	FieldImpressions Field = "impressions"
	FieldClicks      Field = "clicks"
	FieldVideoStarts Field = "video_starts"
	FieldQuartile25  Field = "quartile_25"
	FieldQuartile50  Field = "quartile_50"
	FieldQuartile75  Field = "quartile_75"
	FieldQuartile100 Field = "quartile_100"
	FieldViews       Field = "views"
	FieldVisits      Field = "visits"
)

var knownFields = map[Field]struct{}{
	FieldDate: {}, FieldCreativeID: {}, FieldSpend: {}, FieldImpressions: {},
	FieldClicks: {}, FieldVideoStarts: {}, FieldQuartile25: {}, FieldQuartile50: {},
	FieldQuartile75: {}, FieldQuartile100: {}, FieldViews: {}, FieldVisits: {},
}

// quartileFields is in the same ladder order as models.Quartiles.
var quartileFields = [4]Field{FieldQuartile25, FieldQuartile50, FieldQuartile75, FieldQuartile100}

const DefaultDateLayout = "2006-01-02"

// ColumnMapping tells the normalizer which export column feeds which
// canonical field for one channel. Fields missing from Columns are not
// tracked by the channel and come out absent.
type ColumnMapping struct {
	ChannelID  string
	Profile    locale.Profile
	Columns    map[Field]string
	Completion models.CompletionKind
	DateLayout string
}

// Validate checks the mapping on its own, before any row is seen.
func (m ColumnMapping) Validate() error {
	if m.ChannelID == "" {
		return &models.SchemaMismatchError{Detail: "mapping without channel id"}
	}
	for _, f := range m.fields() {
		if _, ok := knownFields[f]; !ok {
			return &models.SchemaMismatchError{ChannelID: m.ChannelID, Detail: fmt.Sprintf("unknown canonical field %q", f)}
		}
		if m.Columns[f] == "" {
			return &models.SchemaMismatchError{ChannelID: m.ChannelID, Detail: fmt.Sprintf("empty source column for %q", f)}
		}
	}
	switch m.Completion {
	case models.CompletionUndefined:
	case models.CompletionQuartile100, models.CompletionViews, models.CompletionImpressions:
		if !m.Maps(Field(m.Completion)) {
			return &models.SchemaMismatchError{
				ChannelID: m.ChannelID,
				Detail:    fmt.Sprintf("completion metric %q is not mapped to a column", m.Completion),
			}
		}
	default:
		return &models.SchemaMismatchError{ChannelID: m.ChannelID, Detail: fmt.Sprintf("unknown completion metric %q", m.Completion)}
	}
	return m.Profile.Validate()
}

func (m ColumnMapping) Maps(f Field) bool {
	_, ok := m.Columns[f]
	return ok
}

// CompletionKind resolves the completion unit the schema offers: an explicit
// 100% quartile column wins over the declared native metric.
func (m ColumnMapping) CompletionKind() models.CompletionKind {
	if m.Maps(FieldQuartile100) {
		return models.CompletionQuartile100
	}
	if m.Completion.Valid() && m.Maps(Field(m.Completion)) {
		return m.Completion
	}
	return models.CompletionUndefined
}

func (m ColumnMapping) layout() string {
	if m.DateLayout == "" {
		return DefaultDateLayout
	}
	return m.DateLayout
}

// fields returns the mapped fields in a stable order.
func (m ColumnMapping) fields() []Field {
	out := make([]Field, 0, len(m.Columns))
	for f := range m.Columns {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
