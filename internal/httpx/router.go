package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/adrecon/internal/config"
	"github.com/AngelCh415/adrecon/internal/ingest"
	"github.com/AngelCh415/adrecon/internal/metrics"
	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/report"
	"github.com/AngelCh415/adrecon/internal/store"
	"github.com/AngelCh415/adrecon/internal/utils"
)

// Deps is what the HTTP surface needs.
type Deps struct {
	Log         *slog.Logger
	Runner      *ingest.Runner
	Metrics     *metrics.Service
	Fetch       ingest.Fetch
	Contracts   store.ContractStore
	CampaignDir string
	Gatherer    prometheus.Gatherer
	// Archive, when set, serves documents of runs made by other processes.
	Archive Archive
	// Ready reports whether backing stores answer.
	Ready func(r *http.Request) error
}

type Archive interface {
	LatestDocument(ctx context.Context, campaignID string) (models.RenderedDocument, error)
}

func NewRouter(d Deps) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(d.Log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r); err != nil {
				http.Error(w, err.Error(), 503)
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})

	if d.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Post("/reports/run", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("campaign")
		if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
			http.Error(w, "campaign required (file name under the campaign dir)", 400)
			return
		}
		path := filepath.Join(d.CampaignDir, name)
		if filepath.Ext(path) == "" {
			path += ".yaml"
		}
		c, err := config.LoadCampaign(path)
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "unknown campaign", 404)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		job, err := ingest.JobFromCampaign(c, d.Fetch, d.Contracts)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		run, err := d.Runner.Run(r.Context(), job)
		if err != nil && run.ID == "" {
			http.Error(w, err.Error(), 502)
			return
		}
		resp := map[string]any{
			"run_id":              run.ID,
			"campaign_id":         run.CampaignID,
			"channels_reconciled": run.Metrics.Reconciled(),
			"channels_total":      len(run.Metrics.Channels),
		}
		if err != nil {
			resp["sink_error"] = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(201)
		writeJSON(w, resp)
	})

	mux.Get("/reports/{campaign}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "campaign")
		format := r.URL.Query().Get("format")
		run, ok := d.Metrics.Latest(id)
		if !ok && d.Archive != nil && format != "summary" {
			doc, err := d.Archive.LatestDocument(r.Context(), id)
			if err == nil {
				run, ok = store.Run{CampaignID: id, Document: doc}, true
			} else if !errors.Is(err, store.ErrNotFound) {
				http.Error(w, err.Error(), 502)
				return
			}
		}
		if !ok {
			http.Error(w, metrics.ErrNoRun.Error(), 404)
			return
		}
		switch format {
		case "html":
			out, err := report.ToHTML(run.Document)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(out))
		case "summary":
			s, _ := d.Metrics.Summary(id)
			writeJSON(w, s)
		default:
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(run.Document.Body))
		}
	})

	mux.Get("/reports/{campaign}/channels", func(w http.ResponseWriter, r *http.Request) {
		rows, err := d.Metrics.QueryChannels(chi.URLParam(r, "campaign"), r.URL.Query())
		if errors.Is(err, metrics.ErrNoRun) {
			http.Error(w, err.Error(), 404)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		writeJSON(w, rows)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
