// Command adrecon reconciles one campaign from the command line.
//
// Usage:
//
//	adrecon validate --campaign campaigns/camp-2025.yaml
//	adrecon run --campaign campaigns/camp-2025.yaml --out report.md
//	adrecon run --campaign campaigns/camp-2025.yaml --html --out report.html
//	adrecon seed --campaign campaigns/camp-2025.yaml
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AngelCh415/adrecon/internal/config"
	"github.com/AngelCh415/adrecon/internal/ingest"
	"github.com/AngelCh415/adrecon/internal/report"
	"github.com/AngelCh415/adrecon/internal/store"
)

func main() {
	_ = godotenv.Load(".env")

	if err := rootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "adrecon",
		Short:        "Campaign ad-delivery reconciliation",
		SilenceUsage: true,
	}
	root.AddCommand(validateCmd(out))
	root.AddCommand(runCmd(out))
	root.AddCommand(seedCmd(out))
	return root
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func validateCmd(out io.Writer) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a campaign file and its template without fetching exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadCampaign(path)
			if err != nil {
				return err
			}
			if _, err := c.LoadTemplate(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d channels, %d baselines ok\n", c.ID, len(c.Channels), len(c.Baselines))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "campaign", "", "Campaign yaml file")
	cmd.MarkFlagRequired("campaign")
	return cmd
}

func runCmd(out io.Writer) *cobra.Command {
	var (
		path    string
		outPath string
		html    bool
		useDB   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch exports, reconcile and render the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg := config.FromEnv()
			log := newLogger(cfg)
			c, err := config.LoadCampaign(path)
			if err != nil {
				return err
			}

			var (
				contracts store.ContractStore
				sinks     []store.Sink
			)
			fetch := ingest.NewFetch(cfg)
			if useDB {
				if cfg.DatabaseURL == "" {
					return errors.New("DATABASE_URL is required with --db")
				}
				pg, err := store.NewPGStore(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pg.Close()
				contracts = pg
				sinks = append(sinks, pg)
			}
			if cfg.SinkURL != "" {
				sinks = append(sinks, ingest.HTTPSink{URL: cfg.SinkURL, Secret: cfg.SinkSecret, Client: fetch.Client})
			}

			job, err := ingest.JobFromCampaign(c, fetch, contracts)
			if err != nil {
				return err
			}
			r := ingest.NewRunner(store.NewMemoryStore(), log, ingest.NewInstruments(prometheus.NewRegistry()), cfg.FetchConcurrency, sinks...)
			run, err := r.Run(ctx, job)
			if err != nil && run.ID == "" {
				return err
			}
			if err != nil {
				log.Error("sink", slog.String("err", err.Error()))
			}

			body := run.Document.Body
			if html {
				if body, err = report.ToHTML(run.Document); err != nil {
					return err
				}
			}
			w := out
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if _, err := io.WriteString(w, body); err != nil {
				return err
			}
			for _, f := range run.Metrics.Failures {
				log.Warn("channel excluded", slog.String("channel", f.ChannelID), slog.String("reason", f.Reason()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "campaign", "", "Campaign yaml file")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the report here instead of stdout")
	cmd.Flags().BoolVar(&html, "html", false, "Convert the markdown report to HTML")
	cmd.Flags().BoolVar(&useDB, "db", false, "Read baselines from and archive the report to DATABASE_URL")
	cmd.MarkFlagRequired("campaign")
	return cmd
}

func seedCmd(out io.Writer) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store the campaign file's baselines in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			c, err := config.LoadCampaign(path)
			if err != nil {
				return err
			}
			bs, err := c.ContractedBaselines()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pg, err := store.NewPGStore(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()
			for _, b := range bs {
				if err := pg.PutBaseline(ctx, c.ID, b); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "%s: %d baselines stored\n", c.ID, len(bs))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "campaign", "", "Campaign yaml file")
	cmd.MarkFlagRequired("campaign")
	return cmd
}
