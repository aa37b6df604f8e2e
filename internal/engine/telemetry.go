package engine

import (
	"github.com/urwalabs/urwa/internal/circuit"
	"github.com/urwalabs/urwa/internal/cost"
	"github.com/urwalabs/urwa/internal/evidence"
	"github.com/urwalabs/urwa/internal/logging"
	"github.com/urwalabs/urwa/internal/ratelimit"
	"github.com/urwalabs/urwa/internal/types"
)

// CircuitStates returns the state of every known breaker.
func (e *Engine) CircuitStates() []circuit.Snapshot {
	return e.circuits.Snapshots()
}

// StrategyStats returns learned stats for one domain, or all domains when
// domain is empty.
func (e *Engine) StrategyStats(domain string) map[string]map[types.Strategy]types.StrategyStat {
	if domain != "" {
		stats, ok := e.learner.Stats(domain)
		if !ok {
			return nil
		}
		return map[string]map[types.Strategy]types.StrategyStat{domain: stats}
	}
	return e.learner.AllStats()
}

// CostUsage returns current-hour consumption against the ceilings.
func (e *Engine) CostUsage() cost.Snapshot {
	return e.cost.UsageSnapshot()
}

// RateStates returns the pacing state of every tracked domain.
func (e *Engine) RateStates() []ratelimit.State {
	return e.limiter.States()
}

// RecentLogs returns up to limit recent log records, newest first,
// optionally filtered by level.
func (e *Engine) RecentLogs(limit int, level string) []logging.Record {
	if e.logRing == nil {
		return nil
	}
	return e.logRing.Recent(limit, level)
}

// RecentEvidence returns up to limit evidence records, newest first.
func (e *Engine) RecentEvidence(limit int) []evidence.Record {
	return e.evidence.Recent(limit)
}

// CacheStats returns result cache counters.
func (e *Engine) CacheStats() (hits, misses int64, size int) {
	return e.cache.Stats()
}
