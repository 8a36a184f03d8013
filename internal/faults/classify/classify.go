// Package classify assigns a coarse ErrorKind to arbitrary failures.
// Classification is a pure function of the error's observable content,
// so canned error samples always map to the same kind.
package classify

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

// Substring groups checked in order. Network tokens are deliberately
// specific (enotfound, not bare "not found") so DOM messages like
// "selector not found" reach the scraping group.
var (
	networkHints = []string{
		"econnrefused", "connection refused",
		"enotfound", "no such host", "host not found", "getaddrinfo",
		"etimedout", "timed out", "i/o timeout", "deadline exceeded",
		"econnreset", "connection reset", "socket hang up", "broken pipe",
		"network", "unreachable", "fetch",
	}
	scrapingHints = []string{
		"selector", "element not found", "navigation",
		"page closed", "page crashed", "scrape",
	}
	configHints = []string{
		"missing variable", "environment variable", "invalid setting",
		"config", "configuration",
	}
	validationHints = []string{
		"validation", "invalid", "required field", "schema",
	}
)

// Classify determines the kind for a given error. A pre-tagged error
// returns its tag unchanged. Unmatched errors land in KindSystem.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindSystem // Should not happen
	}

	if tag, ok := domain.TagOf(err); ok {
		return tag.Kind
	}

	// Structural checks before message heuristics
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.KindNetwork
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return classifyCode(st.Code())
	}

	s := strings.ToLower(err.Error())

	if containsAny(s, networkHints) {
		return domain.KindNetwork
	}
	if containsAny(s, scrapingHints) {
		return domain.KindScraping
	}
	// Configuration before validation: "invalid setting" must not be
	// swallowed by the broader "invalid" match.
	if containsAny(s, configHints) {
		return domain.KindConfiguration
	}
	if containsAny(s, validationHints) {
		return domain.KindValidation
	}

	return domain.KindSystem
}

// Retryable reports the default retry stance for a kind. Validation and
// configuration failures reproduce the same bad input on every attempt.
func Retryable(kind domain.ErrorKind) bool {
	switch kind {
	case domain.KindNetwork, domain.KindScraping, domain.KindSystem:
		return true
	}
	return false
}

// Describe returns the kind plus the effective retryable flag, honoring
// an explicit tag over the kind default.
func Describe(err error) (domain.ErrorKind, bool) {
	if tag, ok := domain.TagOf(err); ok {
		return tag.Kind, tag.Retryable
	}
	kind := Classify(err)
	return kind, Retryable(kind)
}

func classifyCode(code codes.Code) domain.ErrorKind {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return domain.KindNetwork
	case codes.NotFound, codes.Unimplemented:
		return domain.KindScraping
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return domain.KindValidation
	case codes.Unauthenticated, codes.PermissionDenied:
		return domain.KindConfiguration
	}
	return domain.KindSystem
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
