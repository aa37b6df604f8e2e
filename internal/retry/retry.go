// Package retry decides, per failure kind, whether a failed fetch attempt
// is retried on the same strategy and after what pause. Kinds that signal
// bot detection never retry here; escalation handles them.
package retry

import (
	"math/rand"
	"time"

	"github.com/urwalabs/urwa/internal/types"
)

// Rule is the retry behavior for one failure kind.
type Rule struct {
	// MaxRetries is the number of same-strategy retries after the first
	// attempt. Zero means fail this strategy immediately.
	MaxRetries int

	// Backoffs holds the pause before each retry, indexed by retry number.
	// The last entry repeats if MaxRetries exceeds len(Backoffs).
	Backoffs []time.Duration

	// HalfTimeoutBackoff replaces the fixed backoff with 50% of the
	// strategy timeout, giving slow sites proportional breathing room.
	HalfTimeoutBackoff bool

	// HonorRetryAfter replaces the backoff with the server-provided
	// Retry-After when it is present and longer.
	HonorRetryAfter bool
}

var rules = map[types.FailureKind]Rule{
	types.FailTimeout: {
		MaxRetries:         1,
		HalfTimeoutBackoff: true,
	},
	types.FailConnection: {
		MaxRetries: 2,
		Backoffs:   []time.Duration{time.Second, 2 * time.Second},
	},
	types.FailRateLimit: {
		MaxRetries:      2,
		Backoffs:        []time.Duration{5 * time.Second, 10 * time.Second},
		HonorRetryAfter: true,
	},
	types.FailServer: {
		MaxRetries: 1,
		Backoffs:   []time.Duration{2 * time.Second},
	},
	types.FailUnknown: {
		MaxRetries: 1,
		Backoffs:   []time.Duration{time.Second},
	},
	// FailBlocked, FailChallenge, FailParseEmpty: no same-strategy
	// retries; these escalate straight to a heavier strategy.
}

// RuleFor returns the retry rule for a failure kind. The zero Rule (no
// retries) is returned for kinds without one.
func RuleFor(kind types.FailureKind) Rule {
	return rules[kind]
}

// Decision says what to do after a failed attempt. Retries reuse the same
// strategy; the light fetcher already rotates its user agent on every
// attempt, so no per-retry hint is needed.
type Decision struct {
	Retry bool
	Pause time.Duration
}

// Decide evaluates the rule for an outcome's failure kind, given how many
// same-strategy retries were already spent and the active strategy's
// timeout. The pause carries ±20% jitter so synchronized clients do not
// reconverge on the target.
func Decide(outcome *types.FetchOutcome, retriesUsed int, strategyTimeout time.Duration) Decision {
	if outcome == nil || outcome.Success {
		return Decision{}
	}
	if outcome.Kind.Terminal() || outcome.Kind.Escalates() {
		return Decision{}
	}

	rule := RuleFor(outcome.Kind)
	if retriesUsed >= rule.MaxRetries {
		return Decision{}
	}

	pause := backoffAt(rule, retriesUsed)
	if rule.HalfTimeoutBackoff {
		pause = strategyTimeout / 2
	}
	if rule.HonorRetryAfter && outcome.RetryAfter > pause {
		pause = outcome.RetryAfter
	}
	return Decision{
		Retry: true,
		Pause: jitter(pause),
	}
}

func backoffAt(rule Rule, retry int) time.Duration {
	if len(rule.Backoffs) == 0 {
		return 0
	}
	if retry >= len(rule.Backoffs) {
		retry = len(rule.Backoffs) - 1
	}
	return rule.Backoffs[retry]
}

// jitter spreads a pause uniformly across ±20%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * f)
}
