package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adrecon/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS contracted_baselines (
	campaign_id      TEXT NOT NULL,
	channel_id       TEXT NOT NULL,
	budget           NUMERIC NOT NULL,
	units_contracted BIGINT NOT NULL,
	unit_type        TEXT NOT NULL CHECK (unit_type IN ('IMPRESSIONS', 'VIEWS')),
	PRIMARY KEY (campaign_id, channel_id)
);
CREATE TABLE IF NOT EXISTS reconciled_reports (
	run_id      TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	digest      TEXT NOT NULL,
	body        TEXT NOT NULL,
	slots       JSONB NOT NULL,
	failures    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reconciled_reports_campaign_idx ON reconciled_reports (campaign_id, created_at DESC);
`

// PGStore is the Postgres-backed contract store and report sink.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and makes sure the tables exist.
func NewPGStore(ctx context.Context, url string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PGStore) Baselines(ctx context.Context, campaignID string) ([]models.ContractedBaseline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel_id, budget::text, units_contracted, unit_type
		   FROM contracted_baselines WHERE campaign_id = $1 ORDER BY channel_id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ContractedBaseline, error) {
		var (
			b      models.ContractedBaseline
			budget string
			unit   string
		)
		if err := row.Scan(&b.ChannelID, &budget, &b.UnitsContracted, &unit); err != nil {
			return b, err
		}
		d, err := decimal.NewFromString(budget)
		if err != nil {
			return b, fmt.Errorf("baseline %s budget: %w", b.ChannelID, err)
		}
		b.BudgetContracted = d
		b.UnitType = models.UnitType(unit)
		return b, nil
	})
}

// PutBaseline inserts a baseline once. Baselines are immutable for the life
// of a campaign, so a second insert for the same channel is an error.
func (s *PGStore) PutBaseline(ctx context.Context, campaignID string, b models.ContractedBaseline) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO contracted_baselines (campaign_id, channel_id, budget, units_contracted, unit_type)
		 VALUES ($1, $2, $3::numeric, $4, $5) ON CONFLICT DO NOTHING`,
		campaignID, b.ChannelID, b.BudgetContracted.String(), b.UnitsContracted, string(b.UnitType))
	if err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("baseline %s/%s already set", campaignID, b.ChannelID)
	}
	return nil
}

type failureRow struct {
	ChannelID string `json:"channel_id"`
	Reason    string `json:"reason"`
}

func (s *PGStore) Put(ctx context.Context, run Run) error {
	slots, err := json.Marshal(run.Document.Slots)
	if err != nil {
		return err
	}
	fails := make([]failureRow, 0, len(run.Metrics.Failures))
	for _, f := range run.Metrics.Failures {
		fails = append(fails, failureRow{ChannelID: f.ChannelID, Reason: f.Reason()})
	}
	fb, err := json.Marshal(fails)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reconciled_reports (run_id, campaign_id, digest, body, slots, failures, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.CampaignID, run.Digest, run.Document.Body, slots, fb, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// LatestDocument returns the most recent rendered report of a campaign.
func (s *PGStore) LatestDocument(ctx context.Context, campaignID string) (models.RenderedDocument, error) {
	var (
		doc   models.RenderedDocument
		slots []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT body, slots FROM reconciled_reports WHERE campaign_id = $1 ORDER BY created_at DESC LIMIT 1`,
		campaignID).Scan(&doc.Body, &slots)
	if errors.Is(err, pgx.ErrNoRows) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(slots, &doc.Slots); err != nil {
		return doc, err
	}
	return doc, nil
}

var ErrNotFound = errors.New("not found")
