// Package circuit implements per-domain circuit breakers. A domain whose
// fetches keep failing gets cut off for a recovery window instead of being
// hammered while it is blocking or down.
package circuit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// State is a breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Gauge maps the state to the exported metric value: 0 closed, 1
// half-open, 2 open.
func (s State) Gauge() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// Breaker is the circuit breaker for one registered domain.
//
// Two independent rules open it: a run of consecutive infrastructure
// failures reaching the threshold, or blocked responses (401/403/451) on
// enough distinct URLs inside a sliding window, which indicates a
// domain-wide block rather than a single protected page.
type Breaker struct {
	domain string
	cfg    config.CircuitConfig
	logger *slog.Logger
	clock  func() time.Time

	mu          sync.Mutex
	state       State
	consecutive int
	openedAt    time.Time
	blockedSeen map[string]time.Time // canonical URL -> last blocked at

	// probes admits a bounded number of trial requests while half-open.
	probes *semaphore.Weighted
}

func newBreaker(domain string, cfg config.CircuitConfig, logger *slog.Logger, clock func() time.Time) *Breaker {
	return &Breaker{
		domain:      domain,
		cfg:         cfg,
		logger:      logger,
		clock:       clock,
		state:       StateClosed,
		blockedSeen: make(map[string]time.Time),
		probes:      semaphore.NewWeighted(cfg.HalfOpenMax),
	}
}

// CanExecute reports whether a request to the domain may proceed. While
// half-open it also claims one of the bounded probe slots. The returned
// release must be called exactly once when the admitted call ends — whether
// an outcome was recorded or the caller aborted before fetching — so that
// aborted admissions cannot exhaust the probe capacity.
func (b *Breaker) CanExecute() (bool, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, func() {}
	case StateOpen:
		if b.clock().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.transitionLocked(StateHalfOpen)
			return b.acquireProbeLocked()
		}
		return false, nil
	case StateHalfOpen:
		return b.acquireProbeLocked()
	}
	return false, nil
}

// acquireProbeLocked claims one probe slot. The release is bound to the
// semaphore generation it was acquired from, so calling it after the
// breaker reopened (which replaces the semaphore) is harmless, and the
// sync.Once makes a double call safe.
func (b *Breaker) acquireProbeLocked() (bool, func()) {
	if !b.probes.TryAcquire(1) {
		return false, nil
	}
	sem := b.probes
	var once sync.Once
	return true, func() { once.Do(func() { sem.Release(1) }) }
}

// RecordSuccess resets the failure run. The first clean probe while
// half-open closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	if b.state == StateHalfOpen {
		b.transitionLocked(StateClosed)
	}
}

// RecordFailure accumulates a failed attempt. Only infrastructure-level
// kinds count toward the consecutive threshold; blocked kinds feed the
// distinct-URL window instead. The url should be in canonical form so the
// same page is not counted twice.
func (b *Breaker) RecordFailure(kind types.FailureKind, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		// Any failed probe reopens the breaker.
		b.transitionLocked(StateOpen)
		return
	}

	if kind == types.FailBlocked {
		b.recordBlockedLocked(url)
		return
	}

	if !kind.CountsTowardCircuit() {
		return
	}
	b.consecutive++
	if b.consecutive >= b.cfg.FailureThreshold {
		b.transitionLocked(StateOpen)
	}
}

// recordBlockedLocked tracks blocked responses per distinct URL and opens
// the breaker once enough different URLs were blocked within the window.
func (b *Breaker) recordBlockedLocked(url string) {
	now := b.clock()
	b.blockedSeen[url] = now

	cutoff := now.Add(-b.cfg.BlockedURLWindow)
	distinct := 0
	for u, at := range b.blockedSeen {
		if at.Before(cutoff) {
			delete(b.blockedSeen, u)
			continue
		}
		distinct++
	}
	if distinct >= b.cfg.BlockedURLCount {
		b.logger.Warn("domain-wide block detected",
			"domain", b.domain, "distinct_urls", distinct)
		b.transitionLocked(StateOpen)
	}
}

func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.clock()
		b.probes = semaphore.NewWeighted(b.cfg.HalfOpenMax)
	case StateClosed:
		b.consecutive = 0
		b.blockedSeen = make(map[string]time.Time)
	}
	b.logger.Info("circuit state change",
		"domain", b.domain, "from", from, "to", to)
}

// State returns the current state, applying the open-to-half-open timer.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
		b.transitionLocked(StateHalfOpen)
	}
	return b.state
}

// Snapshot is a telemetry view of one breaker.
type Snapshot struct {
	Domain              string    `json:"domain"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	BlockedURLs         int       `json:"blocked_urls_in_window"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
}

func (b *Breaker) snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Domain:              b.domain,
		State:               b.state,
		ConsecutiveFailures: b.consecutive,
		BlockedURLs:         len(b.blockedSeen),
		OpenedAt:            b.openedAt,
	}
}
