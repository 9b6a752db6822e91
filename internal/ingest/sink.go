package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/AngelCh415/adrecon/internal/store"
)

// HTTPSink posts each finished report to an external endpoint. The body is
// signed with HMAC-SHA256 in X-Signature.
type HTTPSink struct {
	URL    string
	Secret string
	Client HTTPClient
}

type sinkPayload struct {
	RunID      string            `json:"run_id"`
	CampaignID string            `json:"campaign_id"`
	Digest     string            `json:"digest"`
	Body       string            `json:"body"`
	Slots      map[string]string `json:"slots"`
	Reconciled int               `json:"channels_reconciled"`
	Total      int               `json:"channels_total"`
	Issues     []string          `json:"issues,omitempty"`
}

func (s HTTPSink) Put(ctx context.Context, run store.Run) error {
	if s.URL == "" || s.Secret == "" {
		return errors.New("sink not configured")
	}
	b, err := json.Marshal(sinkPayload{
		RunID:      run.ID,
		CampaignID: run.CampaignID,
		Digest:     run.Digest,
		Body:       run.Document.Body,
		Slots:      run.Document.Slots,
		Reconciled: run.Metrics.Reconciled(),
		Total:      len(run.Metrics.Channels),
		Issues:     run.Issues,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", Sign(s.Secret, b))
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("export sink non-2xx: %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
