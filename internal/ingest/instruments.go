package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instruments are the Prometheus series a Runner reports to.
type Instruments struct {
	Runs            *prometheus.CounterVec
	ChannelFailures *prometheus.CounterVec
	FieldIssues     *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

func NewInstruments(reg prometheus.Registerer) *Instruments {
	f := promauto.With(reg)
	return &Instruments{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adrecon_runs_total",
			Help: "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		ChannelFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adrecon_channel_failures_total",
			Help: "Channels excluded from a run, by channel.",
		}, []string{"channel"}),
		FieldIssues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adrecon_field_issues_total",
			Help: "Export cells that could not be parsed, by channel.",
		}, []string{"channel"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "adrecon_run_duration_seconds",
			Help:    "Wall time of a reconciliation run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
