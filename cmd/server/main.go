package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AngelCh415/adrecon/internal/config"
	"github.com/AngelCh415/adrecon/internal/httpx"
	"github.com/AngelCh415/adrecon/internal/ingest"
	"github.com/AngelCh415/adrecon/internal/metrics"
	"github.com/AngelCh415/adrecon/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	fetch := ingest.NewFetch(cfg)
	st := store.NewMemoryStore()
	deps := httpx.Deps{
		Log:         logger,
		Metrics:     metrics.NewService(st),
		Fetch:       fetch,
		CampaignDir: cfg.CampaignDir,
		Gatherer:    reg,
	}

	var sinks []store.Sink
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("database", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer pg.Close()
		sinks = append(sinks, pg)
		deps.Contracts = pg
		deps.Archive = pg
		deps.Ready = func(r *http.Request) error { return pg.Ping(r.Context()) }
	}
	if cfg.SinkURL != "" {
		sinks = append(sinks, ingest.HTTPSink{URL: cfg.SinkURL, Secret: cfg.SinkSecret, Client: fetch.Client})
	}
	deps.Runner = ingest.NewRunner(st, logger, ingest.NewInstruments(reg), cfg.FetchConcurrency, sinks...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", slog.String("port", cfg.Port), slog.String("campaign_dir", cfg.CampaignDir))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
