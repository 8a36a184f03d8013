package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

func TestClassify_MessageHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want domain.ErrorKind
	}{
		{"ECONNREFUSED", domain.KindNetwork},
		{"dial tcp 10.0.0.1:443: connection refused", domain.KindNetwork},
		{"getaddrinfo ENOTFOUND api.football-data.test", domain.KindNetwork},
		{"read tcp: i/o timeout", domain.KindNetwork},
		{"request timed out after 30s", domain.KindNetwork},
		{"fetch failed", domain.KindNetwork},
		{"selector not found: div.match-row", domain.KindScraping},
		{"element not found on page", domain.KindScraping},
		{"navigation aborted", domain.KindScraping},
		{"page closed before extraction", domain.KindScraping},
		{"validation failed for field score", domain.KindValidation},
		{"invalid date format", domain.KindValidation},
		{"required field missing: league_id", domain.KindValidation},
		{"schema mismatch", domain.KindValidation},
		{"missing variable SCRAPER_BASE_URL", domain.KindConfiguration},
		{"invalid setting queue.workers", domain.KindConfiguration},
		{"config file not readable", domain.KindConfiguration},
		{"unexpected", domain.KindSystem},
		{"something broke", domain.KindSystem},
	}

	for _, tc := range cases {
		got := Classify(errors.New(tc.msg))
		if got != tc.want {
			t.Errorf("Classify(%q): expected %s, got %s", tc.msg, tc.want, got)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	err := errors.New("connection reset by peer")
	first := Classify(err)
	second := Classify(err)
	if first != second {
		t.Errorf("classification not stable: %s then %s", first, second)
	}
}

func TestClassify_TagPassthrough(t *testing.T) {
	err := domain.Tag(errors.New("socket hang up"), domain.KindValidation, false)
	if got := Classify(err); got != domain.KindValidation {
		t.Errorf("expected tag to win over heuristics, got %s", got)
	}

	// Tag survives one level of wrapping.
	wrapped := fmt.Errorf("attempt 2: %w", err)
	if got := Classify(wrapped); got != domain.KindValidation {
		t.Errorf("expected tag through wrap, got %s", got)
	}
}

func TestClassify_ContextDeadline(t *testing.T) {
	err := fmt.Errorf("scrape aborted: %w", context.DeadlineExceeded)
	if got := Classify(err); got != domain.KindNetwork {
		t.Errorf("expected network for deadline exceeded, got %s", got)
	}
}

func TestClassify_GRPCCodes(t *testing.T) {
	cases := []struct {
		code codes.Code
		want domain.ErrorKind
	}{
		{codes.Unavailable, domain.KindNetwork},
		{codes.ResourceExhausted, domain.KindNetwork},
		{codes.NotFound, domain.KindScraping},
		{codes.InvalidArgument, domain.KindValidation},
		{codes.Unauthenticated, domain.KindConfiguration},
		{codes.Internal, domain.KindSystem},
	}

	for _, tc := range cases {
		err := status.Error(tc.code, "feed error")
		if got := Classify(err); got != tc.want {
			t.Errorf("code %s: expected %s, got %s", tc.code, tc.want, got)
		}
	}
}

func TestRetryable_Defaults(t *testing.T) {
	if !Retryable(domain.KindNetwork) {
		t.Error("network should be retryable")
	}
	if !Retryable(domain.KindScraping) {
		t.Error("scraping should be retryable")
	}
	if Retryable(domain.KindValidation) {
		t.Error("validation should NOT be retryable")
	}
	if Retryable(domain.KindConfiguration) {
		t.Error("configuration should NOT be retryable")
	}
}

func TestDescribe_TagOverridesKindDefault(t *testing.T) {
	// Network is retryable by default, but the tag says no.
	err := domain.Tag(errors.New("connection refused"), domain.KindNetwork, false)
	kind, retryable := Describe(err)
	if kind != domain.KindNetwork {
		t.Errorf("expected network, got %s", kind)
	}
	if retryable {
		t.Error("tag retryable=false must win")
	}
}
