package ingest

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/AngelCh415/adrecon/internal/config"
	"github.com/AngelCh415/adrecon/internal/store"
	"github.com/AngelCh415/adrecon/internal/utils"
)

// Fetch holds what remote sources share within one process.
type Fetch struct {
	Client  HTTPClient
	Limiter *rate.Limiter
	Backoff utils.Backoff
}

func NewFetch(cfg config.Config) Fetch {
	return Fetch{
		Client:  NewHTTPClient(cfg.HTTPTimeout),
		Limiter: rate.NewLimiter(rate.Limit(cfg.FetchRPS), 1),
		Backoff: utils.NewBackoff(200*time.Millisecond, 3),
	}
}

// JobFromCampaign builds a Job from a campaign file. Contracts defaults to
// the baselines declared in the file.
func JobFromCampaign(c config.Campaign, f Fetch, contracts store.ContractStore) (Job, error) {
	tmpl, err := c.LoadTemplate()
	if err != nil {
		return Job{}, err
	}
	fm, err := c.OutputFormatter()
	if err != nil {
		return Job{}, err
	}
	if contracts == nil {
		bs, err := c.ContractedBaselines()
		if err != nil {
			return Job{}, err
		}
		contracts = store.StaticContracts{c.ID: bs}
	}
	job := Job{CampaignID: c.ID, Contracts: contracts, Template: tmpl, Formatter: fm}
	for _, ch := range c.Channels {
		m, err := ch.Mapping()
		if err != nil {
			return Job{}, err
		}
		src, err := sourceFor(c, ch.Source, f)
		if err != nil {
			return Job{}, fmt.Errorf("channel %s: %w", ch.ID, err)
		}
		job.Channels = append(job.Channels, Channel{Mapping: m, Source: src})
	}
	return job, nil
}

func sourceFor(c config.Campaign, s config.SourceConfig, f Fetch) (Source, error) {
	switch s.Kind {
	case config.SourceCSV:
		return CSVSource{Path: c.Resolve(s.Path), Comma: delimiter(s.Delimiter)}, nil
	case config.SourceXLSX:
		return XLSXSource{Path: c.Resolve(s.Path), Sheet: s.Sheet}, nil
	case config.SourceHTML:
		return HTMLTableSource{Path: c.Resolve(s.Path), Selector: s.Selector}, nil
	case config.SourceHTTP:
		return HTTPSource{URL: s.URL, Client: f.Client, Backoff: f.Backoff, Limiter: f.Limiter}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", s.Kind)
}
