// Package fetcher implements the three fetch tiers: light (plain HTTP),
// stealth (headless browser with fingerprint patches), and ultra
// (hardened browser with maximum evasion and screenshot capture).
package fetcher

import (
	"context"
	"net/url"

	"github.com/urwalabs/urwa/internal/types"
)

// Fetcher is one fetch strategy. All remote failures are reported in-band
// through the outcome's FailureKind; the error channel is reserved for
// nothing — implementations never return Go errors from Fetch.
type Fetcher interface {
	// Strategy identifies the tier.
	Strategy() types.Strategy

	// Fetch retrieves the URL. It honors ctx cancellation and reports
	// its own timer expiry as kind=timeout.
	Fetch(ctx context.Context, u *url.URL) *types.FetchOutcome

	// Close releases transports and browser processes.
	Close() error
}

// Set bundles one fetcher per strategy.
type Set struct {
	fetchers map[types.Strategy]Fetcher
}

// NewSet indexes fetchers by strategy.
func NewSet(fetchers ...Fetcher) *Set {
	m := make(map[types.Strategy]Fetcher, len(fetchers))
	for _, f := range fetchers {
		m[f.Strategy()] = f
	}
	return &Set{fetchers: m}
}

// For returns the fetcher for a strategy, nil if absent.
func (s *Set) For(strategy types.Strategy) Fetcher {
	return s.fetchers[strategy]
}

// Close closes every fetcher, returning the first error.
func (s *Set) Close() error {
	var first error
	for _, f := range s.fetchers {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
