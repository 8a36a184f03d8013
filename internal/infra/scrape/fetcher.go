// Package scrape provides the reference HTTP scrape operation. It
// fetches a task's target URL and maps response codes onto the error
// taxonomy so the retry pipeline treats them correctly.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

// Body size guard for misbehaving endpoints.
const maxBodyBytes = 10 << 20

// Config holds fetcher tuning.
type Config struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultConfig returns default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: "scraperd/1.0",
		Timeout:   20 * time.Second,
	}
}

// Fetcher retrieves scrape targets over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Fetch retrieves target and returns the response body. Failures carry
// classification tags: 5xx and 429 are retryable network failures,
// missing pages are scraping failures, access denials point at
// configuration.
func (f *Fetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if target == "" {
		return nil, domain.Tag(fmt.Errorf("task has no target URL"), domain.KindValidation, false)
	}
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domain.Tag(fmt.Errorf("invalid target URL %q", target), domain.KindValidation, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.Tag(fmt.Errorf("failed to build request: %w", err), domain.KindValidation, false)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// Transport errors classify structurally downstream.
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, target); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.Tag(fmt.Errorf("read body from %s: %w", target, err), domain.KindNetwork, true)
	}
	return body, nil
}

func statusError(code int, target string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.Tag(fmt.Errorf("page not found: %s (HTTP %d)", target, code), domain.KindScraping, false)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.Tag(fmt.Errorf("access denied: %s (HTTP %d)", target, code), domain.KindConfiguration, false)
	case code == http.StatusTooManyRequests:
		return domain.Tag(fmt.Errorf("rate limited: %s (HTTP %d)", target, code), domain.KindNetwork, true)
	case code >= 500:
		return domain.Tag(fmt.Errorf("upstream error: %s (HTTP %d)", target, code), domain.KindNetwork, true)
	default:
		return domain.Tag(fmt.Errorf("unexpected response: %s (HTTP %d)", target, code), domain.KindValidation, false)
	}
}
