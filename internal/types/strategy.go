package types

import "fmt"

// Strategy identifies one of the three fetch implementations, ordered from
// cheapest to most expensive.
type Strategy string

const (
	StrategyLight   Strategy = "light"
	StrategyStealth Strategy = "stealth"
	StrategyUltra   Strategy = "ultra"
)

// Strategies lists all strategies in escalation order.
var Strategies = []Strategy{StrategyLight, StrategyStealth, StrategyUltra}

// ParseStrategy converts a string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLight, StrategyStealth, StrategyUltra:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Rank returns the escalation position of s (light=0, stealth=1, ultra=2).
// Unknown strategies rank past ultra so comparisons stay monotone.
func (s Strategy) Rank() int {
	switch s {
	case StrategyLight:
		return 0
	case StrategyStealth:
		return 1
	case StrategyUltra:
		return 2
	}
	return 3
}

// HeavierThan reports whether s requires more resources than other.
func (s Strategy) HeavierThan(other Strategy) bool {
	return s.Rank() > other.Rank()
}

// UsesBrowser reports whether the strategy drives a headless browser.
// Browser time is what the cost controller meters for these tiers.
func (s Strategy) UsesBrowser() bool {
	return s == StrategyStealth || s == StrategyUltra
}

func (s Strategy) String() string { return string(s) }
