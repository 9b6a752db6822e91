package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AngelCh415/adrecon/internal/models"
)

// Run is one finished reconciliation: the metrics, the rendered report and
// the digest of the inputs that produced them.
type Run struct {
	ID         string
	CampaignID string
	Digest     string
	Metrics    models.CampaignMetrics
	Document   models.RenderedDocument
	Issues     []string
	CreatedAt  time.Time
}

// Sink receives rendered reports.
type Sink interface {
	Put(ctx context.Context, run Run) error
}

// ContractStore supplies the contracted baselines of a campaign.
type ContractStore interface {
	Baselines(ctx context.Context, campaignID string) ([]models.ContractedBaseline, error)
}

// MemoryStore keeps the latest run per campaign. It backs the HTTP API.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
	seen map[string]string // campaign id -> last input digest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]Run),
		seen: make(map[string]string),
	}
}

// MarkSeen records the campaign's latest input digest. It returns false
// when the inputs match the previous ones. Only one digest is kept per
// campaign.
func (s *MemoryStore) MarkSeen(campaignID, digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[campaignID] == digest {
		return false
	}
	s.seen[campaignID] = digest
	return true
}

// Put replaces the campaign's run. Reports are always rederived, never
// patched.
func (s *MemoryStore) Put(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.CampaignID] = run
	return nil
}

func (s *MemoryStore) Latest(campaignID string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[campaignID]
	return r, ok
}

// All returns the latest run of every campaign, ordered by campaign id.
func (s *MemoryStore) All() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.runs))
	for _, v := range s.runs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out
}

// StaticContracts serves baselines defined in campaign files.
type StaticContracts map[string][]models.ContractedBaseline

func (c StaticContracts) Baselines(_ context.Context, campaignID string) ([]models.ContractedBaseline, error) {
	out := make([]models.ContractedBaseline, len(c[campaignID]))
	copy(out, c[campaignID])
	return out, nil
}
