// Package learner accumulates per-domain, per-strategy outcome statistics
// and persists them through an append-only JSONL journal so strategy
// selection improves across restarts.
package learner

import (
	"log/slog"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// Learner tracks which strategies work where. All reads and writes go
// through an in-memory map; the journal is replayed once at startup and
// appended to on every recorded outcome.
type Learner struct {
	cfg     config.LearnerConfig
	logger  *slog.Logger
	clock   func() time.Time
	journal *journal

	mu    sync.RWMutex
	stats map[string]map[types.Strategy]*types.StrategyStat
	// appended counts journal lines written since the last compaction.
	appended int
}

// New opens (or creates) the journal and replays it into memory. Entries
// older than the decay window are dropped during replay so stale knowledge
// about a domain does not outlive the sites themselves.
func New(cfg config.LearnerConfig, logger *slog.Logger) (*Learner, error) {
	l := &Learner{
		cfg:    cfg,
		logger: logger.With("component", "learner"),
		clock:  time.Now,
		stats:  make(map[string]map[types.Strategy]*types.StrategyStat),
	}

	j, err := openJournal(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	l.journal = j

	records, lines, err := j.replay()
	if err != nil {
		// A corrupt journal degrades to empty knowledge, not a dead engine.
		l.logger.Warn("journal replay failed, starting fresh", "error", err)
		records, lines = nil, 0
	}

	cutoff := l.clock().Add(-cfg.DecayAfter)
	kept := 0
	for _, rec := range records {
		switch {
		case rec.Obs != nil:
			if rec.Obs.At.Before(cutoff) {
				continue
			}
			l.applyLocked(*rec.Obs)
			kept++
		case rec.Summary != nil:
			if rec.Summary.Stat.LastAttemptAt.Before(cutoff) {
				continue
			}
			l.applySummaryLocked(*rec.Summary)
			kept++
		}
	}
	l.appended = lines
	l.logger.Info("journal replayed",
		"lines", lines, "applied", kept, "domains", len(l.stats))
	return l, nil
}

// Close flushes and closes the journal.
func (l *Learner) Close() error {
	return l.journal.close()
}

// Record stores one fetch outcome for a domain/strategy pair and appends
// it to the journal. Journal write failures are logged, never surfaced:
// losing learning persistence must not fail a scrape.
func (l *Learner) Record(domain string, strategy types.Strategy, success bool, elapsed time.Duration) {
	e := entry{
		Domain:    domain,
		Strategy:  strategy,
		Success:   success,
		ElapsedMS: elapsed.Milliseconds(),
		At:        l.clock(),
	}

	l.mu.Lock()
	l.applyLocked(e)
	live := l.liveEntriesLocked()
	l.appended++
	compact := l.cfg.CompactFactor > 0 && live > 0 && l.appended > live*l.cfg.CompactFactor
	l.mu.Unlock()

	if err := l.journal.append(e); err != nil {
		l.logger.Warn("journal append failed", "error", err)
	}

	if compact {
		l.compact()
	}
}

// applyLocked folds one journal entry into the in-memory stats.
func (l *Learner) applyLocked(e entry) {
	byStrategy, ok := l.stats[e.Domain]
	if !ok {
		byStrategy = make(map[types.Strategy]*types.StrategyStat)
		l.stats[e.Domain] = byStrategy
	}
	s, ok := byStrategy[e.Strategy]
	if !ok {
		s = &types.StrategyStat{}
		byStrategy[e.Strategy] = s
	}

	// Running mean over attempts; cheap and order-independent enough for
	// selection purposes.
	total := s.AvgResponseMS*float64(s.Attempts) + float64(e.ElapsedMS)
	s.Attempts++
	s.AvgResponseMS = total / float64(s.Attempts)
	s.LastAttemptAt = e.At
	if e.Success {
		s.Successes++
		s.LastSuccessAt = e.At
	}
}

// applySummaryLocked merges a compaction summary into the stats. Replay
// order guarantees summaries precede any raw observations for the pair.
func (l *Learner) applySummaryLocked(s summaryEntry) {
	byStrategy, ok := l.stats[s.Domain]
	if !ok {
		byStrategy = make(map[types.Strategy]*types.StrategyStat)
		l.stats[s.Domain] = byStrategy
	}
	stat := s.Stat
	byStrategy[s.Strategy] = &stat
}

func (l *Learner) liveEntriesLocked() int {
	n := 0
	for _, byStrategy := range l.stats {
		n += len(byStrategy)
	}
	return n
}

// Stats returns a copy of the strategy stats for a domain. The second
// return is false when nothing was ever recorded for it.
func (l *Learner) Stats(domain string) (map[types.Strategy]types.StrategyStat, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	byStrategy, ok := l.stats[domain]
	if !ok {
		return nil, false
	}
	out := make(map[types.Strategy]types.StrategyStat, len(byStrategy))
	for strat, s := range byStrategy {
		out[strat] = *s
	}
	return out, true
}

// Trusted returns the strategies with enough history to steer selection
// for this domain, i.e. those passing the attempts and success-rate bar.
func (l *Learner) Trusted(domain string) map[types.Strategy]types.StrategyStat {
	stats, ok := l.Stats(domain)
	if !ok {
		return nil
	}
	out := make(map[types.Strategy]types.StrategyStat)
	for strat, s := range stats {
		if s.Trusted() {
			out[strat] = s
		}
	}
	return out
}

// AllStats snapshots every domain's stats for the telemetry surface.
func (l *Learner) AllStats() map[string]map[types.Strategy]types.StrategyStat {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]map[types.Strategy]types.StrategyStat, len(l.stats))
	for domain, byStrategy := range l.stats {
		m := make(map[types.Strategy]types.StrategyStat, len(byStrategy))
		for strat, s := range byStrategy {
			m[strat] = *s
		}
		out[domain] = m
	}
	return out
}

// compact rewrites the journal as one summary entry per live
// domain/strategy pair, bounding journal growth to the live set size.
func (l *Learner) compact() {
	l.mu.Lock()
	summaries := make([]summaryEntry, 0, l.liveEntriesLocked())
	for domain, byStrategy := range l.stats {
		for strat, s := range byStrategy {
			summaries = append(summaries, summaryEntry{
				Domain:   domain,
				Strategy: strat,
				Stat:     *s,
			})
		}
	}
	l.appended = len(summaries)
	l.mu.Unlock()

	if err := l.journal.rewrite(summaries); err != nil {
		l.logger.Warn("journal compaction failed", "error", err)
		return
	}
	l.logger.Info("journal compacted", "entries", len(summaries))
}
