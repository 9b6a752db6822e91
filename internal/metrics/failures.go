package metrics

import (
	"sort"

	"github.com/AngelCh415/adrecon/internal/models"
)

// WithChannelErrors records channels that failed before aggregation (their
// export could not be read or mapped). Such channels carry no records, so the
// campaign totals are unchanged; an earlier no-delivery failure is replaced
// by the real cause.
func WithChannelErrors(m models.CampaignMetrics, errs map[string]error) models.CampaignMetrics {
	if len(errs) == 0 {
		return m
	}
	channels := make([]models.ChannelMetrics, 0, len(m.Channels)+len(errs))
	present := map[string]struct{}{}
	for _, cm := range m.Channels {
		present[cm.ChannelID] = struct{}{}
		if _, failed := errs[cm.ChannelID]; failed {
			cm = models.ChannelMetrics{ChannelID: cm.ChannelID, Records: cm.Records, Baseline: cm.Baseline}
		}
		channels = append(channels, cm)
	}
	for id := range errs {
		if _, ok := present[id]; !ok {
			channels = append(channels, models.ChannelMetrics{ChannelID: id})
		}
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ChannelID < channels[j].ChannelID })

	failures := make([]models.ChannelFailure, 0, len(m.Failures)+len(errs))
	for _, f := range m.Failures {
		if _, ok := errs[f.ChannelID]; !ok {
			failures = append(failures, f)
		}
	}
	for id, err := range errs {
		failures = append(failures, models.ChannelFailure{ChannelID: id, Err: err})
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].ChannelID < failures[j].ChannelID })

	m.Channels, m.Failures = channels, failures
	return m
}
