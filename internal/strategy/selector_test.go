package strategy

import (
	"log/slog"
	"os"
	"testing"

	"github.com/urwalabs/urwa/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func profileRecommending(strat types.Strategy) *types.SiteProfile {
	return &types.SiteProfile{Risk: types.RiskMedium, RecommendedStrategy: strat}
}

func TestForceStrategyWins(t *testing.T) {
	s := NewSelector(testLogger)
	req := &types.Request{ForceStrategy: types.StrategyUltra}
	order := s.Choose(profileRecommending(types.StrategyLight), nil, req)
	if len(order) != 1 || order[0] != types.StrategyUltra {
		t.Errorf("order = %v, want [ultra]", order)
	}
}

func TestRecommendationLeadsWithMonotoneTail(t *testing.T) {
	s := NewSelector(testLogger)
	tests := []struct {
		first types.Strategy
		want  []types.Strategy
	}{
		{types.StrategyLight, []types.Strategy{types.StrategyLight, types.StrategyStealth, types.StrategyUltra}},
		{types.StrategyStealth, []types.Strategy{types.StrategyStealth, types.StrategyUltra}},
		{types.StrategyUltra, []types.Strategy{types.StrategyUltra}},
	}
	for _, tt := range tests {
		order := s.Choose(profileRecommending(tt.first), nil, nil)
		if !equalOrder(order, tt.want) {
			t.Errorf("Choose(rec=%s) = %v, want %v", tt.first, order, tt.want)
		}
	}
}

func TestTrustedHeavierTierStaysInRankOrder(t *testing.T) {
	s := NewSelector(testLogger)
	stats := map[types.Strategy]types.StrategyStat{
		types.StrategyStealth: {Attempts: 10, Successes: 9},
	}
	order := s.Choose(profileRecommending(types.StrategyLight), stats, nil)
	want := []types.Strategy{types.StrategyLight, types.StrategyStealth, types.StrategyUltra}
	if !equalOrder(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTrustedNeverReordersEscalation(t *testing.T) {
	s := NewSelector(testLogger)
	stats := map[types.Strategy]types.StrategyStat{
		types.StrategyStealth: {Attempts: 10, Successes: 7},
		types.StrategyUltra:   {Attempts: 10, Successes: 9},
	}
	order := s.Choose(profileRecommending(types.StrategyLight), stats, nil)
	want := []types.Strategy{types.StrategyLight, types.StrategyStealth, types.StrategyUltra}
	if !equalOrder(order, want) {
		t.Errorf("order = %v, want %v (success rate must not reorder tiers)", order, want)
	}
}

func TestTrustedLighterTierLowersStart(t *testing.T) {
	s := NewSelector(testLogger)
	stats := map[types.Strategy]types.StrategyStat{
		types.StrategyLight: {Attempts: 10, Successes: 9},
	}
	order := s.Choose(profileRecommending(types.StrategyStealth), stats, nil)
	want := []types.Strategy{types.StrategyLight, types.StrategyStealth, types.StrategyUltra}
	if !equalOrder(order, want) {
		t.Errorf("order = %v, want %v (trusted light leads, never follows stealth)", order, want)
	}
}

func TestOrderAlwaysMonotone(t *testing.T) {
	s := NewSelector(testLogger)
	trustedSets := []map[types.Strategy]types.StrategyStat{
		nil,
		{types.StrategyLight: {Attempts: 10, Successes: 9}},
		{types.StrategyUltra: {Attempts: 10, Successes: 9}},
		{
			types.StrategyLight: {Attempts: 10, Successes: 7},
			types.StrategyUltra: {Attempts: 10, Successes: 9},
		},
	}
	for _, rec := range types.Strategies {
		for _, stats := range trustedSets {
			order := s.Choose(profileRecommending(rec), stats, nil)
			for i := 1; i < len(order); i++ {
				if !order[i].HeavierThan(order[i-1]) {
					t.Errorf("Choose(rec=%s, stats=%v) = %v: %s follows %s",
						rec, stats, order, order[i], order[i-1])
				}
			}
		}
	}
}

func TestUntrustedStatsIgnored(t *testing.T) {
	s := NewSelector(testLogger)
	stats := map[types.Strategy]types.StrategyStat{
		types.StrategyUltra: {Attempts: 3, Successes: 3},  // too few attempts
		types.StrategyLight: {Attempts: 10, Successes: 2}, // bad rate
	}
	order := s.Choose(profileRecommending(types.StrategyStealth), stats, nil)
	want := []types.Strategy{types.StrategyStealth, types.StrategyUltra}
	if !equalOrder(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestCapAtThreeAndNoDuplicates(t *testing.T) {
	s := NewSelector(testLogger)
	stats := map[types.Strategy]types.StrategyStat{
		types.StrategyLight:   {Attempts: 10, Successes: 10},
		types.StrategyStealth: {Attempts: 10, Successes: 9},
		types.StrategyUltra:   {Attempts: 10, Successes: 8},
	}
	order := s.Choose(profileRecommending(types.StrategyLight), stats, nil)
	if len(order) > 3 {
		t.Fatalf("order %v exceeds cap of 3", order)
	}
	seen := map[types.Strategy]bool{}
	for _, strat := range order {
		if seen[strat] {
			t.Fatalf("duplicate %s in %v", strat, order)
		}
		seen[strat] = true
	}
}

func TestNilProfileDefaultsToLight(t *testing.T) {
	s := NewSelector(testLogger)
	order := s.Choose(nil, nil, nil)
	want := []types.Strategy{types.StrategyLight, types.StrategyStealth, types.StrategyUltra}
	if !equalOrder(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func equalOrder(got, want []types.Strategy) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
