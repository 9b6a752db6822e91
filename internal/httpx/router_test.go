package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adrecon/internal/config"
	"github.com/AngelCh415/adrecon/internal/ingest"
	"github.com/AngelCh415/adrecon/internal/metrics"
	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/store"
)

const campaign = `
campaign: camp
output: {locale: pt-BR}
template:
  inline: "# {{CAMPAIGN_ID}}\n\nCTR {{CAMPAIGN_CTR}} ({{CHANNELS_RECONCILED}})\n"
channels:
  - id: A
    locale: pt-BR
    source: {kind: csv, path: a.csv, delimiter: ";"}
    completion: impressions
    columns: {spend: Custo, impressions: Impressões, clicks: Cliques}
  - id: B
    locale: plain
    source: {kind: csv, path: b.csv}
    columns: {spend: Cost, quartile_100: "100% Complete", clicks: Clicks}
baselines:
  - {channel: A, budget: "2000", units: 100000, unit_type: IMPRESSIONS}
  - {channel: B, budget: "1000", units: 25000, unit_type: VIEWS}
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"camp.yaml": campaign,
		"a.csv":     "Custo;Impressões;Cliques\n\"R$ 1.000,00\";50.000;500\n",
		"b.csv":     "Cost,100% Complete,Clicks\n1000.00,20000,300\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	st := store.NewMemoryStore()
	h := NewRouter(Deps{
		Log:         log,
		Runner:      ingest.NewRunner(st, log, ingest.NewInstruments(reg), 2),
		Metrics:     metrics.NewService(st),
		Fetch:       ingest.NewFetch(config.Config{HTTPTimeout: time.Second, FetchRPS: 10}),
		CampaignDir: dir,
		Gatherer:    reg,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body)
	code, _ = get(t, srv.URL+"/readyz")
	assert.Equal(t, 200, code)
}

func TestRunAndQuery(t *testing.T) {
	srv := newServer(t)

	code, _ := get(t, srv.URL+"/reports/camp")
	assert.Equal(t, 404, code)

	resp, err := http.Post(srv.URL+"/reports/run?campaign=camp", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "camp", out["campaign_id"])
	assert.Equal(t, 2.0, out["channels_reconciled"])

	code, body := get(t, srv.URL+"/reports/camp")
	assert.Equal(t, 200, code)
	assert.Equal(t, "# camp\n\nCTR 1,14% (2 of 2)\n", body)

	_, body = get(t, srv.URL+"/reports/camp?format=html")
	assert.Contains(t, body, "<h1>camp</h1>")

	code, body = get(t, srv.URL+"/reports/camp/channels?channel=b")
	assert.Equal(t, 200, code)
	var rows []metrics.ChannelRow
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "B", rows[0].Channel)
	assert.Equal(t, "ok", rows[0].Status)
	assert.Equal(t, "quartile_100", rows[0].Completion)

	_, body = get(t, srv.URL+"/metrics")
	assert.Contains(t, body, `adrecon_runs_total{outcome="ok"} 1`)
}

func TestRunRejectsBadCampaign(t *testing.T) {
	srv := newServer(t)
	for url, want := range map[string]int{
		"/reports/run":                       400,
		"/reports/run?campaign=../etc":       400,
		"/reports/run?campaign=missing":      404,
		"/reports/run?campaign=camp.missing": 404,
	} {
		resp, err := http.Post(srv.URL+url, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, url)
	}
}

type fakeArchive map[string]models.RenderedDocument

func (f fakeArchive) LatestDocument(_ context.Context, id string) (models.RenderedDocument, error) {
	doc, ok := f[id]
	if !ok {
		return models.RenderedDocument{}, store.ErrNotFound
	}
	return doc, nil
}

func TestReportFromArchive(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(Deps{
		Log:     log,
		Metrics: metrics.NewService(store.NewMemoryStore()),
		Archive: fakeArchive{"old": {Body: "archived"}},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/old", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "archived", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/new", nil))
	assert.Equal(t, 404, rec.Code)
}
