package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/types"
)

// Observation is one raw fetch measurement.
type Observation struct {
	Strategy types.Strategy
	Elapsed  time.Duration
	Success  bool
	At       time.Time
}

// ObservationRing is a fixed-size buffer of recent fetch observations.
// Inserting is constant time; the oldest entry is overwritten when full.
type ObservationRing struct {
	mu   sync.Mutex
	buf  []Observation
	next int
	full bool
}

// NewObservationRing creates a ring of the given capacity.
func NewObservationRing(size int) *ObservationRing {
	if size <= 0 {
		size = 1024
	}
	return &ObservationRing{buf: make([]Observation, size)}
}

// Add inserts an observation.
func (r *ObservationRing) Add(o Observation) {
	r.mu.Lock()
	r.buf[r.next] = o
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Len returns the number of stored observations.
func (r *ObservationRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// MedianElapsed returns the median fetch duration for a strategy, or 0 when
// no observations for that strategy exist.
func (r *ObservationRing) MedianElapsed(strategy types.Strategy) time.Duration {
	r.mu.Lock()
	size := r.next
	if r.full {
		size = len(r.buf)
	}
	durations := make([]time.Duration, 0, size)
	for i := 0; i < size; i++ {
		if r.buf[i].Strategy == strategy {
			durations = append(durations, r.buf[i].Elapsed)
		}
	}
	r.mu.Unlock()

	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	return durations[len(durations)/2]
}
