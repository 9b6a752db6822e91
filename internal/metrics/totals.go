package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/models"
)

// totals holds campaign numerators and denominators. merge is associative
// and commutative, so channels can be reduced in any order or grouping.
type totals struct {
	spend decimal.Decimal

	clicks     models.Count
	clickUnits int64

	cpmSpend, cpvSpend decimal.Decimal
	cpmUnits, cpvUnits int64

	quartile       [4]int64
	quartileUnits  [4]int64
	retentionUnits int64

	vtrNum, vtrDen int64

	budget       decimal.Decimal
	pacingSpend  decimal.Decimal
	pacingBudget decimal.Decimal

	impUnits, impContracted     int64
	viewsUnits, viewsContracted int64

	denominators map[models.CompletionKind]models.DenominatorTotal
}

func channelTotals(cm models.ChannelMetrics) totals {
	units := cm.UnitsUsed.N
	t := totals{
		denominators: map[models.CompletionKind]models.DenominatorTotal{
			cm.Completion: {Units: units, Channels: []string{cm.ChannelID}},
		},
	}
	if cm.SpendUsed.Valid {
		t.spend = cm.SpendUsed.Decimal
	}
	if cm.ClicksUsed.Valid {
		t.clicks = cm.ClicksUsed
		t.clickUnits = units
	}
	if cm.Completion == models.CompletionQuartile100 {
		t.retentionUnits = units
		for q := range cm.Quartile {
			if cm.Quartile[q].Valid {
				t.quartile[q] = cm.Quartile[q].N
				t.quartileUnits[q] = units
			}
		}
	}
	if c, s := completes(cm), starts(cm); c.Valid && s.Valid {
		t.vtrNum, t.vtrDen = c.N, s.N
	}

	if b := cm.Baseline; b != nil {
		t.budget = b.BudgetContracted
		if cm.SpendUsed.Valid {
			t.pacingSpend = cm.SpendUsed.Decimal
			t.pacingBudget = b.BudgetContracted
			switch b.UnitType {
			case models.UnitImpressions:
				t.cpmSpend, t.cpmUnits = cm.SpendUsed.Decimal, units
			case models.UnitViews:
				t.cpvSpend, t.cpvUnits = cm.SpendUsed.Decimal, units
			}
		}
		switch b.UnitType {
		case models.UnitImpressions:
			t.impUnits, t.impContracted = units, b.UnitsContracted
		case models.UnitViews:
			t.viewsUnits, t.viewsContracted = units, b.UnitsContracted
		}
	}
	return t
}

func (t totals) merge(o totals) totals {
	r := totals{
		spend:           t.spend.Add(o.spend),
		clicks:          t.clicks.Add(o.clicks),
		clickUnits:      t.clickUnits + o.clickUnits,
		cpmSpend:        t.cpmSpend.Add(o.cpmSpend),
		cpvSpend:        t.cpvSpend.Add(o.cpvSpend),
		cpmUnits:        t.cpmUnits + o.cpmUnits,
		cpvUnits:        t.cpvUnits + o.cpvUnits,
		retentionUnits:  t.retentionUnits + o.retentionUnits,
		vtrNum:          t.vtrNum + o.vtrNum,
		vtrDen:          t.vtrDen + o.vtrDen,
		budget:          t.budget.Add(o.budget),
		pacingSpend:     t.pacingSpend.Add(o.pacingSpend),
		pacingBudget:    t.pacingBudget.Add(o.pacingBudget),
		impUnits:        t.impUnits + o.impUnits,
		impContracted:   t.impContracted + o.impContracted,
		viewsUnits:      t.viewsUnits + o.viewsUnits,
		viewsContracted: t.viewsContracted + o.viewsContracted,
		denominators:    map[models.CompletionKind]models.DenominatorTotal{},
	}
	for q := range r.quartile {
		r.quartile[q] = t.quartile[q] + o.quartile[q]
		r.quartileUnits[q] = t.quartileUnits[q] + o.quartileUnits[q]
	}
	for _, src := range []map[models.CompletionKind]models.DenominatorTotal{t.denominators, o.denominators} {
		for k, d := range src {
			cur := r.denominators[k]
			cur.Units += d.Units
			cur.Channels = append(cur.Channels, d.Channels...)
			r.denominators[k] = cur
		}
	}
	for k, d := range r.denominators {
		sort.Strings(d.Channels)
		r.denominators[k] = d
	}
	return r
}

func (t totals) apply(m *models.CampaignMetrics) {
	m.SpendUsed = t.spend
	m.ClicksUsed = t.clicks
	m.UnitsUsed = models.Count{}
	if len(t.denominators) == 1 {
		for _, d := range t.denominators {
			m.UnitsUsed = models.CountOf(d.Units)
		}
	}
	m.Budget = t.budget
	m.Quartile = t.quartile
	m.RetentionUnits = t.retentionUnits

	m.CTR = ratio(decimal.NewFromInt(t.clicks.N), decimal.NewFromInt(t.clickUnits))
	m.CPM = ratio(t.cpmSpend.Mul(thousand), decimal.NewFromInt(t.cpmUnits))
	m.CPV = ratio(t.cpvSpend, decimal.NewFromInt(t.cpvUnits))
	m.VTR = ratio(decimal.NewFromInt(t.vtrNum), decimal.NewFromInt(t.vtrDen))
	for q := range t.quartile {
		m.QuartileRetention[q] = ratio(decimal.NewFromInt(t.quartile[q]), decimal.NewFromInt(t.quartileUnits[q]))
	}
	m.PacingPct = ratio(t.pacingSpend, t.pacingBudget)
	m.UtilizationImpressions = ratio(decimal.NewFromInt(t.impUnits), decimal.NewFromInt(t.impContracted))
	m.UtilizationViews = ratio(decimal.NewFromInt(t.viewsUnits), decimal.NewFromInt(t.viewsContracted))

	m.Denominators = map[models.CompletionKind]models.DenominatorTotal{}
	for k, d := range t.denominators {
		m.Denominators[k] = d
	}
}
