package metrics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/models"
)

// RatioPrecision is the number of decimal places kept by every derived ratio.
const RatioPrecision = 16

var (
	one      = decimal.NewFromInt(1)
	thousand = decimal.NewFromInt(1000)
)

// channelAcc sums one channel's records. Absent stays absent until a record
// brings a value.
type channelAcc struct {
	records     int
	spend       decimal.NullDecimal
	impressions models.Count
	clicks      models.Count
	starts      models.Count
	views       models.Count
	visits      models.Count
	quartile    [4]models.Count
	kinds       map[models.CompletionKind]struct{}
}

func (a *channelAcc) add(r models.CanonicalRecord) {
	a.records++
	if r.Spend.Valid {
		if a.spend.Valid {
			a.spend.Decimal = a.spend.Decimal.Add(r.Spend.Decimal)
		} else {
			a.spend = r.Spend
		}
	}
	a.impressions = a.impressions.Add(r.Impressions)
	a.clicks = a.clicks.Add(r.Clicks)
	a.starts = a.starts.Add(r.VideoStarts)
	a.views = a.views.Add(r.Views)
	a.visits = a.visits.Add(r.Visits)
	for q := range a.quartile {
		a.quartile[q] = a.quartile[q].Add(r.Quartile[q])
	}
	a.kinds[r.Completion] = struct{}{}
}

// Aggregate reduces canonical records and contracted baselines into campaign
// metrics. Channel-level errors are recorded in Failures and the channel is
// left out of the totals; the run itself never fails.
func Aggregate(campaignID string, records []models.CanonicalRecord, baselines []models.ContractedBaseline) models.CampaignMetrics {
	accs := map[string]*channelAcc{}
	for _, r := range records {
		a, ok := accs[r.ChannelID]
		if !ok {
			a = &channelAcc{kinds: map[models.CompletionKind]struct{}{}}
			accs[r.ChannelID] = a
		}
		a.add(r)
	}

	bl := map[string]*models.ContractedBaseline{}
	dup := map[string]bool{}
	for i := range baselines {
		b := baselines[i]
		if _, ok := bl[b.ChannelID]; ok {
			dup[b.ChannelID] = true
		}
		bl[b.ChannelID] = &b
	}

	ids := make([]string, 0, len(accs)+len(bl))
	for id := range accs {
		ids = append(ids, id)
	}
	for id := range bl {
		if _, ok := accs[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := models.CampaignMetrics{CampaignID: campaignID}
	var t totals
	for _, id := range ids {
		var (
			cm  models.ChannelMetrics
			err error
		)
		if dup[id] {
			err = &models.SchemaMismatchError{ChannelID: id, Detail: "more than one contracted baseline"}
		} else {
			cm, err = channelMetrics(id, accs[id], bl[id])
		}
		if err != nil {
			cm = models.ChannelMetrics{ChannelID: id, Baseline: bl[id]}
			if a := accs[id]; a != nil {
				cm.Records = a.records
			}
			out.Failures = append(out.Failures, models.ChannelFailure{ChannelID: id, Err: err})
		} else {
			t = t.merge(channelTotals(cm))
		}
		out.Channels = append(out.Channels, cm)
	}
	t.apply(&out)
	return out
}

func channelMetrics(id string, a *channelAcc, b *models.ContractedBaseline) (models.ChannelMetrics, error) {
	if a == nil {
		return models.ChannelMetrics{}, fmt.Errorf("channel %s: %w", id, models.ErrNoDelivery)
	}
	if len(a.kinds) > 1 {
		return models.ChannelMetrics{}, &models.SchemaMismatchError{ChannelID: id, Detail: "records disagree on the completion metric"}
	}
	var kind models.CompletionKind
	for k := range a.kinds {
		kind = k
	}

	cm := models.ChannelMetrics{
		ChannelID:   id,
		Completion:  kind,
		Records:     a.records,
		SpendUsed:   a.spend,
		ClicksUsed:  a.clicks,
		Impressions: a.impressions,
		VideoStarts: a.starts,
		Views:       a.views,
		Visits:      a.visits,
		Quartile:    a.quartile,
		Baseline:    b,
	}

	switch kind {
	case models.CompletionQuartile100:
		cm.UnitsUsed = a.quartile[3]
	case models.CompletionViews:
		cm.UnitsUsed = a.views
	case models.CompletionImpressions:
		cm.UnitsUsed = a.impressions
	default:
		return models.ChannelMetrics{}, &models.UndefinedCompletionMetricError{
			ChannelID: id,
			Detail:    "schema provides neither a 100% quartile column nor a native views/impressions metric",
		}
	}
	if !cm.UnitsUsed.Valid {
		return models.ChannelMetrics{}, &models.UndefinedCompletionMetricError{
			ChannelID: id,
			Detail:    fmt.Sprintf("%s column carries no values", kind),
		}
	}
	if err := checkLadder(id, a.quartile); err != nil {
		return models.ChannelMetrics{}, err
	}

	units := cm.UnitsUsed
	cm.CTR = countRatio(cm.ClicksUsed, units)
	for q := range cm.Quartile {
		cm.QuartileRetention[q] = countRatio(cm.Quartile[q], units)
	}
	cm.VTR = countRatio(completes(cm), starts(cm))

	if b != nil {
		if cm.SpendUsed.Valid {
			cm.CPVOrCPM = ratio(cm.SpendUsed.Decimal.Mul(scale(b.UnitType)), decimal.NewFromInt(units.N))
			cm.PacingPct = ratio(cm.SpendUsed.Decimal, b.BudgetContracted)
		}
		cm.UtilizationPct = ratio(decimal.NewFromInt(units.N), decimal.NewFromInt(b.UnitsContracted))
	}
	return cm, nil
}

// checkLadder rejects quartile counts that grow along the ladder: fewer
// viewers at 25% than at 100% cannot happen with a consistent schema.
func checkLadder(id string, q [4]models.Count) error {
	prev := -1
	for i := range q {
		if !q[i].Valid {
			continue
		}
		if prev >= 0 && q[prev].N < q[i].N {
			return &models.SchemaMismatchError{
				ChannelID: id,
				Detail: fmt.Sprintf("quartile_%d (%d) < quartile_%d (%d)",
					models.Quartiles[prev], q[prev].N, models.Quartiles[i], q[i].N),
			}
		}
		prev = i
	}
	return nil
}

func completes(cm models.ChannelMetrics) models.Count {
	if cm.Quartile[3].Valid {
		return cm.Quartile[3]
	}
	return cm.Views
}

func starts(cm models.ChannelMetrics) models.Count {
	if cm.VideoStarts.Valid {
		return cm.VideoStarts
	}
	if !completes(cm).Valid {
		return models.Count{}
	}
	return cm.Impressions
}

// scale comes from the contracted unit type, never from the magnitude of
// the numbers.
func scale(u models.UnitType) decimal.Decimal {
	if u == models.UnitImpressions {
		return thousand
	}
	return one
}

// ratio returns None for a zero denominator. Equal operands give exactly 1.
func ratio(num, den decimal.Decimal) decimal.NullDecimal {
	if den.IsZero() {
		return decimal.NullDecimal{}
	}
	if num.Equal(den) {
		return decimal.NewNullDecimal(one)
	}
	return decimal.NewNullDecimal(num.DivRound(den, RatioPrecision))
}

func countRatio(num, den models.Count) decimal.NullDecimal {
	if !num.Valid || !den.Valid {
		return decimal.NullDecimal{}
	}
	return ratio(decimal.NewFromInt(num.N), decimal.NewFromInt(den.N))
}
