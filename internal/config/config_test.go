package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adrecon/internal/locale"
	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/normalize"
)

const campaignYAML = `
campaign: camp-2025
output:
  locale: pt-BR
  not_applicable: "-"
  percent_places: 1
template:
  path: report.md.tmpl
  delims: {open: "[[", close: "]]"}
channels:
  - id: youtube
    locale: pt-BR
    source: {kind: csv, path: exports/youtube.csv}
    completion: views
    date_layout: 02/01/2006
    columns:
      date: Dia
      spend: Custo
      views: Visualizações
      clicks: Cliques
  - id: dv-360
    profile: {name: custom, thousands_sep: " ", decimal_sep: ",", decimals: 2}
    source: {kind: xlsx, path: exports/dv.xlsx, sheet: Report}
    completion: impressions
    columns:
      spend: Spend
      impressions: Impr
baselines:
  - {channel: youtube, budget: "1500.10", units: 100000, unit_type: VIEWS}
  - {channel: dv-360, budget: "2000", units: 0, unit_type: IMPRESSIONS}
`

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FETCH_CONCURRENCY", "nope")
	t.Setenv("FETCH_RPS", "2.5")

	cfg := FromEnv()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 2.5, cfg.FetchRPS)
	assert.Equal(t, "campaigns", cfg.CampaignDir)
}

func TestLoadCampaign(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "camp.yaml"), []byte(campaignYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.md.tmpl"), []byte("CTR [[CAMPAIGN_CTR]]"), 0o600))

	c, err := LoadCampaign(filepath.Join(dir, "camp.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "camp-2025", c.ID)
	assert.Equal(t, filepath.Join(dir, "exports/youtube.csv"), c.Resolve(c.Channels[0].Source.Path))

	m, err := c.Channels[0].Mapping()
	require.NoError(t, err)
	assert.Equal(t, locale.PtBR, m.Profile)
	assert.Equal(t, "Visualizações", m.Columns[normalize.FieldViews])
	assert.Equal(t, models.CompletionViews, m.CompletionKind())

	m, err = c.Channels[1].Mapping()
	require.NoError(t, err)
	assert.Equal(t, " ", m.Profile.ThousandsSep)

	bs, err := c.ContractedBaselines()
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.True(t, decimal.RequireFromString("1500.10").Equal(bs[0].BudgetContracted))
	assert.Equal(t, models.UnitViews, bs[0].UnitType)
	assert.Equal(t, int64(0), bs[1].UnitsContracted)

	f, err := c.OutputFormatter()
	require.NoError(t, err)
	assert.Equal(t, "-", f.NotApplicable)
	assert.Equal(t, int32(1), f.PercentPlaces)
	assert.Equal(t, int32(2), f.RatioPlaces)

	tmpl, err := c.LoadTemplate()
	require.NoError(t, err)
	assert.Equal(t, []string{"CAMPAIGN_CTR"}, tmpl.Keys())
}

func TestParseCampaignRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key": `campaign: x
bogus: 1`,
		"no channels": `campaign: x
template: {inline: "a"}`,
		"bad source": `campaign: x
template: {inline: "a"}
channels:
  - {id: a, locale: plain, source: {kind: ftp, path: x}}`,
		"unknown locale": `campaign: x
template: {inline: "a"}
channels:
  - {id: a, locale: fr-FR, source: {kind: csv, path: x}}`,
		"unmapped completion": `campaign: x
template: {inline: "a"}
channels:
  - {id: a, locale: plain, completion: views, source: {kind: csv, path: x}, columns: {spend: S}}`,
		"float budget typo": `campaign: x
template: {inline: "a"}
channels:
  - {id: a, locale: plain, source: {kind: csv, path: x}}
baselines:
  - {channel: a, budget: "1.500,00", units: 1, unit_type: VIEWS}`,
		"bad unit type": `campaign: x
template: {inline: "a"}
channels:
  - {id: a, locale: plain, source: {kind: csv, path: x}}
baselines:
  - {channel: a, budget: "1", units: 1, unit_type: CLICKS}`,
		"placeholder clash": `campaign: x
template: {inline: "a"}
channels:
  - {id: dv-360, locale: plain, source: {kind: csv, path: x}}
  - {id: dv_360, locale: plain, source: {kind: csv, path: y}}`,
		"campaign channel": `campaign: x
template: {inline: "a"}
channels:
  - {id: campaign, locale: plain, source: {kind: csv, path: x}}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCampaign([]byte(text))
			assert.Error(t, err)
		})
	}
}

func TestInlineTemplateDefaultDelims(t *testing.T) {
	c, err := ParseCampaign([]byte(`campaign: x
template: {inline: "{{ CHANNELS_TOTAL }}", escape_html: true}
channels:
  - {id: a, locale: en-us, source: {kind: http, url: "http://example.test/a"}}`))
	require.NoError(t, err)
	tmpl, err := c.LoadTemplate()
	require.NoError(t, err)
	assert.True(t, tmpl.EscapeHTML)
	assert.Equal(t, []string{"CHANNELS_TOTAL"}, tmpl.Keys())
}

func TestShippedCampaign(t *testing.T) {
	c, err := LoadCampaign(filepath.Join("..", "..", "campaigns", "camp-2025.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Channels, 2)
	_, err = c.LoadTemplate()
	require.NoError(t, err)
}
