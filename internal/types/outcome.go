package types

import (
	"net/http"
	"time"
)

// FetchOutcome is the in-band result of one fetch attempt. Fetchers never
// return Go errors for remote failures; every failure mode is expressed as
// a FailureKind so the escalation runner can act on it.
type FetchOutcome struct {
	Success bool

	// Content is the full response body on success.
	Content []byte

	// FinalURL is the URL after redirects, when known.
	FinalURL string

	// HTTPStatus is the last observed status code, 0 if none was received.
	HTTPStatus int

	// Headers are the response headers, when the transport exposes them.
	Headers http.Header

	// Elapsed is the wall time of the attempt.
	Elapsed time.Duration

	// Kind classifies the failure; empty on success.
	Kind FailureKind

	// RetryAfter carries the server's Retry-After on HTTP 429, if present.
	RetryAfter time.Duration

	// RedirectCount is the length of the redirect chain.
	RedirectCount int

	// EvidenceHandle references a captured evidence record, if any.
	EvidenceHandle string
}

// ElapsedMS returns the attempt duration in whole milliseconds.
func (o *FetchOutcome) ElapsedMS() int64 {
	return o.Elapsed.Milliseconds()
}

// Failure builds a failed outcome of the given kind.
func Failure(kind FailureKind, status int, elapsed time.Duration) *FetchOutcome {
	return &FetchOutcome{Kind: kind, HTTPStatus: status, Elapsed: elapsed}
}
