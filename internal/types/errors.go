package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL   = errors.New("invalid URL")
	ErrCircuitOpen  = errors.New("circuit open")
	ErrCostExceeded = errors.New("cost ceiling exceeded")
	ErrDenied       = errors.New("compliance denied")
	ErrCancelled    = errors.New("scrape cancelled")
)

// ScrapeError is the terminal error of a scrape call. It names the last
// failure kind and how many fetch attempts were made before giving up.
type ScrapeError struct {
	Kind     FailureKind
	URL      string
	Attempts int
	TraceID  string
	Err      error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s failed (%s, %d attempts): %v", e.URL, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("scrape %s failed (%s, %d attempts)", e.URL, e.Kind, e.Attempts)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// NewScrapeError builds a ScrapeError for the given terminal kind.
func NewScrapeError(kind FailureKind, url string, attempts int, traceID string) *ScrapeError {
	return &ScrapeError{Kind: kind, URL: url, Attempts: attempts, TraceID: traceID, Err: sentinelFor(kind)}
}

func sentinelFor(kind FailureKind) error {
	switch kind {
	case FailInvalidURL:
		return ErrInvalidURL
	case FailCircuitOpen:
		return ErrCircuitOpen
	case FailCostExceeded:
		return ErrCostExceeded
	case FailComplianceDenied:
		return ErrDenied
	case FailCancelled:
		return ErrCancelled
	}
	return nil
}
