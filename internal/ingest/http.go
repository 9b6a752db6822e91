package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/AngelCh415/adrecon/internal/utils"
)

// GetJSONWithRetry fetches url and decodes the body into dst. 5xx and
// transport errors are retried with b; other non-2xx answers are not.
// lim, when set, throttles every attempt.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, b utils.Backoff, lim *rate.Limiter, url string, dst any) error {
	if url == "" {
		return errors.New("empty url")
	}
	return b.Do(ctx, func(int) error {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return utils.Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return utils.Permanent(err)
		}
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err := fmt.Errorf("GET %s: non-2xx: %d body=%s", url, resp.StatusCode, string(body))
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return utils.Permanent(err)
		}
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(dst); err != nil {
			return utils.Permanent(fmt.Errorf("GET %s: decode: %w", url, err))
		}
		return nil
	})
}
