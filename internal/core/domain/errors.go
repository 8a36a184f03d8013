package domain

import "errors"

// ErrorKind is the coarse failure taxonomy driving retry and reporting
// policy. The set is closed; anything unrecognized lands in KindSystem.
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindScraping      ErrorKind = "scraping"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindSystem        ErrorKind = "system"
)

// Kinds returns every classification kind.
func Kinds() []ErrorKind {
	return []ErrorKind{KindNetwork, KindScraping, KindValidation, KindConfiguration, KindSystem}
}

// Valid reports whether k is a known kind.
func (k ErrorKind) Valid() bool {
	switch k {
	case KindNetwork, KindScraping, KindValidation, KindConfiguration, KindSystem:
		return true
	}
	return false
}

// TaggedError carries a classification assigned at the failure site.
// Classification returns the tag unchanged instead of re-deriving it.
type TaggedError struct {
	Kind      ErrorKind
	Retryable bool
	Err       error
}

func (e *TaggedError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TaggedError) Unwrap() error {
	return e.Err
}

// Tag wraps err with an explicit kind and retryable hint.
func Tag(err error, kind ErrorKind, retryable bool) error {
	if err == nil {
		return nil
	}
	return &TaggedError{Kind: kind, Retryable: retryable, Err: err}
}

// TagOf extracts a classification tag if err carries one.
func TagOf(err error) (*TaggedError, bool) {
	var tagged *TaggedError
	if errors.As(err, &tagged) {
		return tagged, true
	}
	return nil, false
}
