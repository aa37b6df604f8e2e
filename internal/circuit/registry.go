package circuit

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/config"
)

// Registry hands out one breaker per registered domain.
type Registry struct {
	cfg    config.CircuitConfig
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a breaker registry.
func NewRegistry(cfg config.CircuitConfig, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		logger:   logger.With("component", "circuit"),
		clock:    time.Now,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for a domain, creating it closed on first use.
func (r *Registry) For(domain string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[domain]
	if !ok {
		b = newBreaker(domain, r.cfg, r.logger, r.clock)
		r.breakers[domain] = b
	}
	return b
}

// Snapshots returns the state of every known breaker, sorted by domain.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		out = append(out, b.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
