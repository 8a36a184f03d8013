package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "scraperd/1.0" {
			t.Errorf("expected user agent set, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`<html>scores</html>`))
	}))
	defer srv.Close()

	f := NewFetcher(Config{})
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `<html>scores</html>` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestFetchStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		kind      domain.ErrorKind
		retryable bool
	}{
		{"not found is a scraping failure", 404, domain.KindScraping, false},
		{"gone is a scraping failure", 410, domain.KindScraping, false},
		{"forbidden points at configuration", 403, domain.KindConfiguration, false},
		{"rate limit retries", 429, domain.KindNetwork, true},
		{"server error retries", 503, domain.KindNetwork, true},
		{"teapot is a validation failure", 418, domain.KindValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			f := NewFetcher(Config{})
			_, err := f.Fetch(context.Background(), srv.URL)
			if err == nil {
				t.Fatal("expected an error")
			}
			tag, ok := domain.TagOf(err)
			if !ok {
				t.Fatalf("expected a tagged error, got %v", err)
			}
			if tag.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, tag.Kind)
			}
			if tag.Retryable != tt.retryable {
				t.Errorf("expected retryable %v, got %v", tt.retryable, tag.Retryable)
			}
		})
	}
}

func TestFetchRejectsBadTargets(t *testing.T) {
	f := NewFetcher(Config{})

	for _, target := range []string{"", "ftp://example.com/feed", "::not-a-url"} {
		_, err := f.Fetch(context.Background(), target)
		if err == nil {
			t.Errorf("target %q: expected an error", target)
			continue
		}
		tag, ok := domain.TagOf(err)
		if !ok || tag.Kind != domain.KindValidation {
			t.Errorf("target %q: expected validation tag, got %v", target, err)
		}
	}
}
