package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Request describes a single scrape invocation. It is immutable once built;
// the trace ID is assigned on entry and propagates through the call.
type Request struct {
	// URL is the absolute HTTP/HTTPS target.
	URL *url.URL

	// Hint is an opaque user instruction, not interpreted by the core.
	Hint string

	// ForceStrategy pins the scrape to a single strategy when set.
	ForceStrategy Strategy

	// Timeout overrides the default call deadline.
	Timeout time.Duration

	// BypassCache skips the result cache lookup (the result is still stored).
	BypassCache bool

	// TraceID identifies this invocation in logs and evidence.
	TraceID string
}

// NewRequest parses and validates the raw URL, rejecting non-HTTP schemes.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", rawURL)
	}
	return &Request{URL: u}, nil
}

// URLString returns the string form of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Hostname returns the lowercased host of the request URL without port.
func (r *Request) Hostname() string {
	if r.URL == nil {
		return ""
	}
	return strings.ToLower(r.URL.Hostname())
}

// DomainKey returns the registered domain (eTLD+1) used to key all per-site
// state for this request.
func (r *Request) DomainKey() string {
	return RegisteredDomain(r.Hostname())
}
