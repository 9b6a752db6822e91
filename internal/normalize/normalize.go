package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/locale"
	"github.com/AngelCh415/adrecon/internal/models"
)

// FieldIssue is a value that could not be read. The field comes out absent
// and the rest of the row is kept.
type FieldIssue struct {
	Row   int
	Field Field
	Err   error
}

func (i FieldIssue) String() string {
	return fmt.Sprintf("row %d %s: %v", i.Row, i.Field, i.Err)
}

type Result struct {
	Records []models.CanonicalRecord
	Issues  []FieldIssue
}

// Normalize converts rows of one channel export into canonical records, in
// input order. A configured column missing from the row headers fails the
// whole channel with a SchemaMismatchError; bad cells only produce issues.
func Normalize(rows []models.RawRow, m ColumnMapping) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	fields := m.fields()
	completion := m.CompletionKind()

	res := Result{Records: make([]models.CanonicalRecord, 0, len(rows))}
	for i, row := range rows {
		for _, f := range fields {
			if !row.Has(m.Columns[f]) {
				return Result{}, &models.SchemaMismatchError{
					ChannelID: m.ChannelID,
					Column:    m.Columns[f],
					Detail:    fmt.Sprintf("configured for %s but absent from row %d headers", f, i+1),
				}
			}
		}
		rec := models.CanonicalRecord{ChannelID: m.ChannelID, Completion: completion}
		for _, f := range fields {
			cell, _ := row.Get(m.Columns[f])
			if err := assign(&rec, f, cell, m); err != nil {
				res.Issues = append(res.Issues, FieldIssue{Row: i + 1, Field: f, Err: err})
			}
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// CheckHeaders checks the mapping against an export's header row, so an
// export without data rows still fails on a misnamed column.
func CheckHeaders(headers []string, m ColumnMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}
	for _, f := range m.fields() {
		if _, ok := have[m.Columns[f]]; !ok {
			return &models.SchemaMismatchError{
				ChannelID: m.ChannelID,
				Column:    m.Columns[f],
				Detail:    fmt.Sprintf("configured for %s but absent from the export headers", f),
			}
		}
	}
	return nil
}

func assign(rec *models.CanonicalRecord, f Field, cell string, m ColumnMapping) error {
	switch f {
	case FieldDate:
		s := strings.TrimSpace(cell)
		if s == "" {
			return nil
		}
		d, err := time.Parse(m.layout(), s)
		if err != nil {
			return &models.MalformedValueError{Raw: cell, Profile: m.layout(), Reason: "bad date"}
		}
		rec.Date = d
		return nil
	case FieldCreativeID:
		rec.CreativeID = strings.TrimSpace(cell)
		return nil
	case FieldSpend:
		d, err := locale.ParseCurrency(m.Profile, cell)
		if errors.Is(err, locale.ErrEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.IsNegative() {
			return &models.MalformedValueError{Raw: cell, Profile: m.Profile.Name, Reason: "negative spend"}
		}
		rec.Spend = decimal.NullDecimal{Decimal: d, Valid: true}
		return nil
	}

	c, err := parseCount(m.Profile, cell)
	if err != nil {
		return err
	}
	switch f {
	case FieldImpressions:
		rec.Impressions = c
	case FieldClicks:
		rec.Clicks = c
	case FieldVideoStarts:
		rec.VideoStarts = c
	case FieldViews:
		rec.Views = c
	case FieldVisits:
		rec.Visits = c
	default:
		for q, qf := range quartileFields {
			if qf == f {
				rec.Quartile[q] = c
			}
		}
	}
	return nil
}

func parseCount(p locale.Profile, cell string) (models.Count, error) {
	n, err := locale.ParseCount(p, cell)
	if errors.Is(err, locale.ErrEmpty) {
		return models.Count{}, nil
	}
	if err != nil {
		return models.Count{}, err
	}
	if n < 0 {
		return models.Count{}, &models.MalformedValueError{Raw: cell, Profile: p.Name, Reason: "negative count"}
	}
	return models.CountOf(n), nil
}
