package metrics

import (
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/store"
)

var ErrNoRun = errors.New("campaign has no reconciled run")

// ChannelRow is the JSON view of one channel of the latest run.
type ChannelRow struct {
	Channel        string                `json:"channel"`
	Status         string                `json:"status"`
	Reason         string                `json:"reason,omitempty"`
	Completion     string                `json:"completion,omitempty"`
	Records        int                   `json:"records"`
	Spend          decimal.NullDecimal   `json:"spend"`
	Clicks         models.Count          `json:"clicks"`
	Units          models.Count          `json:"units"`
	CTR            decimal.NullDecimal   `json:"ctr"`
	CPVOrCPM       decimal.NullDecimal   `json:"cpv_or_cpm"`
	VTR            decimal.NullDecimal   `json:"vtr"`
	Retention      []decimal.NullDecimal `json:"quartile_retention"`
	PacingPct      decimal.NullDecimal   `json:"pacing_pct"`
	UtilizationPct decimal.NullDecimal   `json:"utilization_pct"`
}

// Summary is the campaign header returned next to the channel rows.
type Summary struct {
	CampaignID   string                                            `json:"campaign_id"`
	RunID        string                                            `json:"run_id"`
	Reconciled   int                                               `json:"channels_reconciled"`
	Total        int                                               `json:"channels_total"`
	Spend        decimal.Decimal                                   `json:"spend"`
	CTR          decimal.NullDecimal                               `json:"ctr"`
	CPM          decimal.NullDecimal                               `json:"cpm"`
	CPV          decimal.NullDecimal                               `json:"cpv"`
	PacingPct    decimal.NullDecimal                               `json:"pacing_pct"`
	Denominators map[models.CompletionKind]models.DenominatorTotal `json:"denominators"`
	Issues       []string                                          `json:"issues,omitempty"`
}

type Service struct{ st *store.MemoryStore }

func NewService(st *store.MemoryStore) *Service { return &Service{st: st} }
func norm(s string) string                      { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = norm(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// Latest returns the most recent run of a campaign.
func (s *Service) Latest(campaignID string) (store.Run, bool) { return s.st.Latest(campaignID) }

func (s *Service) Summary(campaignID string) (Summary, error) {
	run, ok := s.st.Latest(campaignID)
	if !ok {
		return Summary{}, ErrNoRun
	}
	m := run.Metrics
	return Summary{
		CampaignID:   m.CampaignID,
		RunID:        run.ID,
		Reconciled:   m.Reconciled(),
		Total:        len(m.Channels),
		Spend:        m.SpendUsed,
		CTR:          m.CTR,
		CPM:          m.CPM,
		CPV:          m.CPV,
		PacingPct:    m.PacingPct,
		Denominators: m.Denominators,
		Issues:       run.Issues,
	}, nil
}

// QueryChannels filters the channels of the latest run by ?channel=a,b and
// ?status=ok|failed, paginated with limit/offset.
func (s *Service) QueryChannels(campaignID string, v url.Values) ([]ChannelRow, error) {
	run, ok := s.st.Latest(campaignID)
	if !ok {
		return nil, ErrNoRun
	}
	chSet := csvSet(v.Get("channel"))
	status := norm(v.Get("status"))
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)

	rows := make([]ChannelRow, 0, len(run.Metrics.Channels))
	for _, cm := range run.Metrics.Channels {
		if len(chSet) > 0 {
			if _, ok := chSet[norm(cm.ChannelID)]; !ok {
				continue
			}
		}
		row := toRow(cm)
		if f, failed := run.Metrics.Failed(cm.ChannelID); failed {
			row.Status, row.Reason = "failed", f.Reason()
		}
		if status != "" && row.Status != status {
			continue
		}
		rows = append(rows, row)
	}

	// orden determinista
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Channel < rows[j].Channel })

	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return paginate(rows, limit, offset), nil
}

func toRow(cm models.ChannelMetrics) ChannelRow {
	return ChannelRow{
		Channel:        cm.ChannelID,
		Status:         "ok",
		Completion:     string(cm.Completion),
		Records:        cm.Records,
		Spend:          cm.SpendUsed,
		Clicks:         cm.ClicksUsed,
		Units:          cm.UnitsUsed,
		CTR:            cm.CTR,
		CPVOrCPM:       cm.CPVOrCPM,
		VTR:            cm.VTR,
		Retention:      cm.QuartileRetention[:],
		PacingPct:      cm.PacingPct,
		UtilizationPct: cm.UtilizationPct,
	}
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	} // tope sano
	if offset > n {
		offset = n
	}
	return limit, offset
}
