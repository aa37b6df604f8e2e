// Package strategy turns a site profile and learned per-domain stats into
// an ordered escalation plan across the three fetch tiers.
package strategy

import (
	"log/slog"
	"sort"

	"github.com/urwalabs/urwa/internal/types"
)

// Selector chooses the strategy order for one scrape call.
type Selector struct {
	logger *slog.Logger
}

// NewSelector creates a selector.
func NewSelector(logger *slog.Logger) *Selector {
	return &Selector{logger: logger.With("component", "selector")}
}

// Choose emits the ordered list of strategies to try. A forced strategy
// yields a single-element plan. Otherwise the profile's recommendation and
// any trusted strategies form the candidate set — a trusted lighter tier
// lowers the starting point — the tail is filled with everything heavier,
// and the emitted order always walks light → stealth → ultra so escalation
// never revisits a lighter tier.
func (s *Selector) Choose(profile *types.SiteProfile, stats map[types.Strategy]types.StrategyStat, req *types.Request) []types.Strategy {
	if req != nil && req.ForceStrategy != "" {
		return []types.Strategy{req.ForceStrategy}
	}

	first := types.StrategyLight
	if profile != nil && profile.RecommendedStrategy != "" {
		first = profile.RecommendedStrategy
	}
	order := []types.Strategy{first}

	for strat, st := range stats {
		if st.Trusted() {
			order = appendUnique(order, strat)
		}
	}

	// Fill the tail: every strategy heavier than the current heaviest
	// candidate.
	heaviest := order[0]
	for _, strat := range order {
		if strat.HeavierThan(heaviest) {
			heaviest = strat
		}
	}
	for _, strat := range types.Strategies {
		if strat.HeavierThan(heaviest) {
			order = appendUnique(order, strat)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Rank() < order[j].Rank() })

	if len(order) > 3 {
		order = order[:3]
	}
	return order
}

func appendUnique(order []types.Strategy, strat types.Strategy) []types.Strategy {
	for _, got := range order {
		if got == strat {
			return order
		}
	}
	return append(order, strat)
}
