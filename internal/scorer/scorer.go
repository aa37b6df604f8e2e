// Package scorer grades successful scrape results. The score is a pure
// function of the result and the strategy that produced it, folding in
// the observed median latency for that strategy.
package scorer

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/urwalabs/urwa/internal/observability"
	"github.com/urwalabs/urwa/internal/types"
)

// Factor weights; they sum to 1.
const (
	weightContentLength = 0.3
	weightStrategy      = 0.2
	weightQuality       = 0.2
	weightStructured    = 0.1
	weightSpeed         = 0.2
)

// warnBelow is the factor threshold that triggers a warning.
const warnBelow = 0.3

// Scorer computes confidence scores. The observation ring supplies the
// per-strategy median used by the speed factor.
type Scorer struct {
	observations *observability.ObservationRing
}

// New creates a scorer backed by the given observation ring.
func New(observations *observability.ObservationRing) *Scorer {
	return &Scorer{observations: observations}
}

// Score grades one successful result.
func (s *Scorer) Score(result *types.ScrapeResult, strategy types.Strategy) *types.ConfidenceScore {
	factors := map[string]float64{
		"content_length":      contentLengthFactor(len(result.Content)),
		"strategy_weight":     strategyWeight(strategy),
		"response_quality":    responseQuality(result),
		"had_structured_data": structuredDataFactor(result.Content),
		"speed":               s.speedFactor(result, strategy),
	}

	overall := factors["content_length"]*weightContentLength +
		factors["strategy_weight"]*weightStrategy +
		factors["response_quality"]*weightQuality +
		factors["had_structured_data"]*weightStructured +
		factors["speed"]*weightSpeed

	var warnings []string
	for name, v := range factors {
		if v < warnBelow {
			warnings = append(warnings, fmt.Sprintf("low %s factor (%.2f)", name, v))
		}
	}

	return &types.ConfidenceScore{
		Overall:  overall,
		Factors:  factors,
		Warnings: warnings,
	}
}

// contentLengthFactor is piecewise-linear: 0 at empty, 0.5 at 1 KiB, 1 at
// 8 KiB and above.
func contentLengthFactor(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < 1024:
		return 0.5 * float64(n) / 1024
	case n < 8*1024:
		return 0.5 + 0.5*float64(n-1024)/float64(7*1024)
	default:
		return 1
	}
}

// strategyWeight discounts heavier tiers: needing a hardened browser
// usually means the site is adversarial.
func strategyWeight(strategy types.Strategy) float64 {
	switch strategy {
	case types.StrategyStealth:
		return 0.9
	case types.StrategyUltra:
		return 0.8
	default:
		return 1.0
	}
}

func responseQuality(result *types.ScrapeResult) float64 {
	if result.HTTPStatus != 200 {
		return 0
	}
	if result.RedirectCount > 3 {
		return 0.6
	}
	return 1
}

// structuredDataFactor is 1 when the page carries JSON-LD, Open Graph
// meta tags, or tables.
func structuredDataFactor(content []byte) float64 {
	if len(content) == 0 {
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return 0
	}
	if doc.Find(`script[type="application/ld+json"]`).Length() > 0 {
		return 1
	}
	if doc.Find(`meta[property^="og:"]`).Length() > 0 {
		return 1
	}
	if doc.Find("table").Length() > 0 {
		return 1
	}
	return 0
}

// speedFactor compares the attempt's duration to the strategy's observed
// median: 1 at or below the median, linearly decaying to 0.2 at 4x.
func (s *Scorer) speedFactor(result *types.ScrapeResult, strategy types.Strategy) float64 {
	median := s.observations.MedianElapsed(strategy)
	if median <= 0 {
		// No history yet; neutral.
		return 1
	}
	ratio := float64(result.Elapsed) / float64(median)
	switch {
	case ratio <= 1:
		return 1
	case ratio >= 4:
		return 0.2
	default:
		return 1 - 0.8*(ratio-1)/3
	}
}
