package observability

import (
	"testing"
	"time"

	"github.com/urwalabs/urwa/internal/types"
)

func TestObservationRingMedian(t *testing.T) {
	ring := NewObservationRing(16)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		ring.Add(Observation{
			Strategy: types.StrategyLight,
			Elapsed:  time.Duration(ms) * time.Millisecond,
			Success:  true,
		})
	}
	ring.Add(Observation{Strategy: types.StrategyStealth, Elapsed: 5 * time.Second})

	if got := ring.MedianElapsed(types.StrategyLight); got != 300*time.Millisecond {
		t.Errorf("median = %s, want 300ms", got)
	}
	if got := ring.MedianElapsed(types.StrategyStealth); got != 5*time.Second {
		t.Errorf("stealth median = %s, want 5s", got)
	}
	if got := ring.MedianElapsed(types.StrategyUltra); got != 0 {
		t.Errorf("ultra median = %s, want 0 with no history", got)
	}
}

func TestObservationRingOverwrite(t *testing.T) {
	ring := NewObservationRing(4)
	for i := 0; i < 10; i++ {
		ring.Add(Observation{Strategy: types.StrategyLight, Elapsed: time.Duration(i) * time.Second})
	}
	if got := ring.Len(); got != 4 {
		t.Errorf("len = %d, want capacity 4", got)
	}
	// Survivors are 6s..9s, median of four picks the upper middle.
	if got := ring.MedianElapsed(types.StrategyLight); got != 8*time.Second {
		t.Errorf("median = %s, want 8s over the surviving window", got)
	}
}
