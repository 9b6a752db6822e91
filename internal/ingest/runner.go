package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/adrecon/internal/metrics"
	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/normalize"
	"github.com/AngelCh415/adrecon/internal/report"
	"github.com/AngelCh415/adrecon/internal/store"
)

// Channel pairs an export source with the mapping that reads it.
type Channel struct {
	Mapping normalize.ColumnMapping
	Source  Source
}

// Job is everything one reconciliation needs.
type Job struct {
	CampaignID string
	Channels   []Channel
	Contracts  store.ContractStore
	Template   report.Template
	Formatter  report.Formatter
}

type Runner struct {
	st          *store.MemoryStore
	sinks       []store.Sink
	log         *slog.Logger
	inst        *Instruments
	concurrency int
}

func NewRunner(st *store.MemoryStore, log *slog.Logger, inst *Instruments, concurrency int, sinks ...store.Sink) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{st: st, sinks: sinks, log: log, inst: inst, concurrency: concurrency}
}

type fetched struct {
	exp Export
	err error
}

// Run fetches every channel export, normalizes, aggregates and projects the
// report. Channel problems end up in the metrics' Failures, and a configured
// channel without records fails with ErrNoDelivery; only context
// cancellation, a baseline lookup error or a projection error fail the run.
// Inputs identical to an earlier run return that run without new side
// effects.
func (r *Runner) Run(ctx context.Context, job Job) (store.Run, error) {
	start := time.Now()
	run, err := r.run(ctx, job)
	outcome := "ok"
	switch {
	case errors.Is(err, errUnchanged):
		outcome, err = "unchanged", nil
	case err != nil:
		outcome = "error"
	}
	if r.inst != nil {
		r.inst.Runs.WithLabelValues(outcome).Inc()
		r.inst.RunDuration.Observe(time.Since(start).Seconds())
	}
	return run, err
}

var errUnchanged = errors.New("inputs unchanged")

func (r *Runner) run(ctx context.Context, job Job) (store.Run, error) {
	log := r.log.With(slog.String("campaign", job.CampaignID))

	results := make([]fetched, len(job.Channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, ch := range job.Channels {
		i, ch := i, ch
		g.Go(func() error {
			exp, err := ch.Source.Fetch(gctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = fetched{exp: exp, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return store.Run{}, err
	}

	var baselines []models.ContractedBaseline
	if job.Contracts != nil {
		bs, err := job.Contracts.Baselines(ctx, job.CampaignID)
		if err != nil {
			return store.Run{}, fmt.Errorf("baselines: %w", err)
		}
		baselines = bs
	}

	digest, err := digestOf(job, results, baselines)
	if err != nil {
		return store.Run{}, err
	}
	if !r.st.MarkSeen(job.CampaignID, digest) {
		if prev, ok := r.st.Latest(job.CampaignID); ok && prev.Digest == digest {
			log.Info("inputs unchanged", slog.String("run_id", prev.ID))
			return prev, errUnchanged
		}
	}

	var (
		records []models.CanonicalRecord
		issues  []string
		chErrs  = map[string]error{}
	)
	for i, ch := range job.Channels {
		id := ch.Mapping.ChannelID
		if err := results[i].err; err != nil {
			log.Warn("channel fetch failed", slog.String("channel", id), slog.String("err", err.Error()))
			chErrs[id] = err
			continue
		}
		exp := results[i].exp
		if exp.Headers != nil {
			if err := normalize.CheckHeaders(exp.Headers, ch.Mapping); err != nil {
				log.Warn("channel rejected", slog.String("channel", id), slog.String("err", err.Error()))
				chErrs[id] = err
				continue
			}
		}
		res, err := normalize.Normalize(exp.Rows, ch.Mapping)
		if err != nil {
			log.Warn("channel rejected", slog.String("channel", id), slog.String("err", err.Error()))
			chErrs[id] = err
			continue
		}
		if len(res.Records) == 0 {
			chErrs[id] = fmt.Errorf("channel %s: %w", id, models.ErrNoDelivery)
			continue
		}
		for _, is := range res.Issues {
			issues = append(issues, id+": "+is.String())
		}
		if r.inst != nil && len(res.Issues) > 0 {
			r.inst.FieldIssues.WithLabelValues(id).Add(float64(len(res.Issues)))
		}
		records = append(records, res.Records...)
	}

	m := metrics.WithChannelErrors(metrics.Aggregate(job.CampaignID, records, baselines), chErrs)
	for _, f := range m.Failures {
		if r.inst != nil {
			r.inst.ChannelFailures.WithLabelValues(f.ChannelID).Inc()
		}
		log.Warn("channel excluded", slog.String("channel", f.ChannelID), slog.String("reason", f.Reason()))
	}

	doc, err := report.Project(m, job.Template, job.Formatter)
	if err != nil {
		return store.Run{}, fmt.Errorf("project: %w", err)
	}

	run := store.Run{
		ID:         uuid.NewString(),
		CampaignID: job.CampaignID,
		Digest:     digest,
		Metrics:    m,
		Document:   doc,
		Issues:     issues,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.st.Put(ctx, run); err != nil {
		return store.Run{}, err
	}
	var sinkErrs []error
	for _, s := range r.sinks {
		if err := s.Put(ctx, run); err != nil {
			sinkErrs = append(sinkErrs, err)
		}
	}
	log.Info("reconcile complete",
		slog.String("run_id", run.ID),
		slog.Int("records", len(records)),
		slog.Int("channels_reconciled", m.Reconciled()),
		slog.Int("channels_total", len(m.Channels)),
		slog.Int("field_issues", len(issues)))
	if len(sinkErrs) > 0 {
		return run, fmt.Errorf("sink: %w", errors.Join(sinkErrs...))
	}
	return run, nil
}

type digestChannel struct {
	Mapping normalize.ColumnMapping `json:"mapping"`
	Headers []string                `json:"headers"`
	Rows    []models.RawRow         `json:"rows"`
	Err     string                  `json:"err,omitempty"`
}

// digestOf hashes every input that can change the report.
func digestOf(job Job, results []fetched, baselines []models.ContractedBaseline) (string, error) {
	chans := make([]digestChannel, len(job.Channels))
	for i, ch := range job.Channels {
		chans[i] = digestChannel{Mapping: ch.Mapping, Headers: results[i].exp.Headers, Rows: results[i].exp.Rows}
		if results[i].err != nil {
			chans[i].Err = results[i].err.Error()
		}
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i].Mapping.ChannelID < chans[j].Mapping.ChannelID })
	bs := make([]models.ContractedBaseline, len(baselines))
	copy(bs, baselines)
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].ChannelID < bs[j].ChannelID })

	b, err := json.Marshal(struct {
		Campaign  string                      `json:"campaign"`
		Channels  []digestChannel             `json:"channels"`
		Baselines []models.ContractedBaseline `json:"baselines"`
		Template  report.Template             `json:"template"`
		Formatter report.Formatter            `json:"formatter"`
	}{job.CampaignID, chans, bs, job.Template, job.Formatter})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
