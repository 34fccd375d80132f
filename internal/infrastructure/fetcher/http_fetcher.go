package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"IntelRadar/internal/config"
	"IntelRadar/internal/domain"
	"IntelRadar/internal/ports"
)

// HTTPFetcher downloads article pages with a browser-like identity.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

var _ ports.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher; a nil client gets the configured timeout.
func NewHTTPFetcher(cfg config.FetcherConfig, client *http.Client) *HTTPFetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	return &HTTPFetcher{client: client, userAgent: cfg.UserAgent, maxBodyBytes: limit}
}

// Fetch performs a GET and returns the body. Any non-2xx status is a failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.Page{}, fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return domain.Page{}, fmt.Errorf("read page: %w", err)
	}

	return domain.Page{URL: url, Body: body}, nil
}
