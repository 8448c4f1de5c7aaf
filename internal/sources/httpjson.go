package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cardledger/price-data/internal/resilience"
)

// GetJSON performs a GET request and decodes the JSON response into out.
// Non-2xx responses become *resilience.StatusError with Retry-After parsed
// on 429. When out is nil the body is discarded.
func GetJSON(ctx context.Context, hc *http.Client, rawURL string, header http.Header, out any) error {
	body, err := GetBody(ctx, hc, rawURL, header)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// GetBody performs a GET request and returns the raw response body.
func GetBody(ctx context.Context, hc *http.Client, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		statusErr := &resilience.StatusError{
			StatusCode: resp.StatusCode,
			Body:       body,
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			statusErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, statusErr
	}

	return body, nil
}

// BuildURL joins a base URL, path, and query values.
func BuildURL(base, path string, query url.Values) string {
	full := base + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
