// Package ratelimit paces outbound fetches per registered domain. Each
// domain gets an adaptive inter-request delay that stretches on pushback
// (429s, timeouts) and relaxes back toward the base after successes.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// domainState holds pacing state for one registered domain.
type domainState struct {
	mu           sync.Mutex
	delay        time.Duration
	lastRequest  time.Time
	requests     int64
	throttles    int64
	lastThrottle time.Time
}

// Limiter serializes request spacing per domain. Acquiring a slot blocks
// until the domain's current delay has elapsed since the previous request,
// or the context is cancelled.
type Limiter struct {
	cfg    config.RateConfig
	logger *slog.Logger
	clock  func() time.Time

	mu      sync.Mutex
	domains map[string]*domainState
}

// NewLimiter creates a per-domain rate limiter.
func NewLimiter(cfg config.RateConfig, logger *slog.Logger) *Limiter {
	return &Limiter{
		cfg:     cfg,
		logger:  logger.With("component", "ratelimit"),
		clock:   time.Now,
		domains: make(map[string]*domainState),
	}
}

func (l *Limiter) state(domain string) *domainState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.domains[domain]
	if !ok {
		s = &domainState{delay: l.cfg.DefaultDelay}
		l.domains[domain] = s
	}
	return s
}

// AcquireSlot blocks until the domain's pacing delay has elapsed since the
// last request. The slot is claimed up front, before the sleep, so that
// concurrent acquirers queue behind it; a caller cancelled mid-wait returns
// ctx.Err() but its window stays consumed.
func (l *Limiter) AcquireSlot(ctx context.Context, domain string) error {
	s := l.state(domain)

	s.mu.Lock()
	now := l.clock()
	var wait time.Duration
	if !s.lastRequest.IsZero() {
		if due := s.lastRequest.Add(s.delay); due.After(now) {
			wait = due.Sub(now)
		}
	}
	// Claim the slot before sleeping so concurrent acquirers queue behind
	// this request rather than racing for the same window.
	s.lastRequest = now.Add(wait)
	s.requests++
	s.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMinimum raises the domain's delay to at least min (used for
// robots.txt Crawl-delay directives). It never lowers an existing delay.
func (l *Limiter) SetMinimum(domain string, min time.Duration) {
	if min <= 0 {
		return
	}
	if min > l.cfg.MaxDelay {
		min = l.cfg.MaxDelay
	}
	s := l.state(domain)
	s.mu.Lock()
	if min > s.delay {
		s.delay = min
	}
	s.mu.Unlock()
}

// RecordOutcome adjusts the domain's delay from the observed fetch result:
// 429 doubles the delay, timeouts stretch it by 25%, success relaxes it by
// 10% down to the configured base. The delay always stays within
// [min_delay, max_delay].
func (l *Limiter) RecordOutcome(domain string, outcome *types.FetchOutcome) {
	s := l.state(domain)
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.delay
	switch {
	case outcome.Success:
		s.delay = time.Duration(float64(s.delay) * 0.9)
		if s.delay < l.cfg.DefaultDelay {
			s.delay = l.cfg.DefaultDelay
		}
	case outcome.Kind == types.FailRateLimit:
		s.throttles++
		s.lastThrottle = l.clock()
		s.delay *= 2
		if outcome.RetryAfter > s.delay {
			s.delay = outcome.RetryAfter
		}
	case outcome.Kind == types.FailTimeout:
		s.delay = time.Duration(float64(s.delay) * 1.25)
	default:
		return
	}

	if s.delay < l.cfg.MinDelay {
		s.delay = l.cfg.MinDelay
	}
	if s.delay > l.cfg.MaxDelay {
		s.delay = l.cfg.MaxDelay
	}

	if s.delay != before {
		l.logger.Debug("adjusted pacing delay",
			"domain", domain, "from", before, "to", s.delay)
	}
}

// Delay returns the domain's current inter-request delay.
func (l *Limiter) Delay(domain string) time.Duration {
	s := l.state(domain)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// State is a telemetry snapshot of one domain's pacing.
type State struct {
	Domain       string        `json:"domain"`
	Delay        time.Duration `json:"delay"`
	Requests     int64         `json:"requests"`
	Throttles    int64         `json:"throttles"`
	LastRequest  time.Time     `json:"last_request"`
	LastThrottle time.Time     `json:"last_throttle,omitempty"`
}

// States returns a snapshot for every tracked domain.
func (l *Limiter) States() []State {
	l.mu.Lock()
	domains := make(map[string]*domainState, len(l.domains))
	for d, s := range l.domains {
		domains[d] = s
	}
	l.mu.Unlock()

	out := make([]State, 0, len(domains))
	for d, s := range domains {
		s.mu.Lock()
		out = append(out, State{
			Domain:       d,
			Delay:        s.delay,
			Requests:     s.requests,
			Throttles:    s.throttles,
			LastRequest:  s.lastRequest,
			LastThrottle: s.lastThrottle,
		})
		s.mu.Unlock()
	}
	return out
}
