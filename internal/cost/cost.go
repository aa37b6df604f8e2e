// Package cost tracks per-hour resource consumption and refuses new work
// once any configured ceiling is hit.
package cost

import (
	"log/slog"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// Per-unit cost estimates in USD.
const (
	costPerToken         = 0.00001
	costPerBrowserMinute = 0.001
	costPerRequest       = 0.0001
)

// Usage accumulates consumption within one hour bucket.
type Usage struct {
	LLMTokens      int64   `json:"llm_tokens"`
	BrowserSeconds float64 `json:"browser_seconds"`
	Requests       int64   `json:"requests"`
	EstimatedUSD   float64 `json:"estimated_usd"`
}

// BrowserMinutes returns accumulated browser time in minutes.
func (u Usage) BrowserMinutes() float64 { return u.BrowserSeconds / 60 }

// Controller enforces hourly ceilings on tokens, browser minutes, request
// count, and estimated spend. Hour buckets older than two hours are evicted
// on every touch so the map cannot grow unbounded.
type Controller struct {
	cfg    config.CostConfig
	logger *slog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	hourly map[string]*Usage
}

// NewController creates a cost controller with the given ceilings.
func NewController(cfg config.CostConfig, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: logger.With("component", "cost"),
		clock:  time.Now,
		hourly: make(map[string]*Usage),
	}
}

// Admit reports whether a new fetch with the given strategy may start.
// It charges nothing; RecordFetch settles actual consumption afterwards.
func (c *Controller) Admit(strategy types.Strategy) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.currentLocked()
	switch {
	case u.Requests >= c.cfg.HourlyRequests:
		c.logger.Warn("request ceiling reached", "requests", u.Requests)
		return false
	case u.LLMTokens >= c.cfg.HourlyTokens:
		c.logger.Warn("token ceiling reached", "tokens", u.LLMTokens)
		return false
	case strategy.UsesBrowser() && u.BrowserMinutes() >= c.cfg.HourlyBrowserMinutes:
		c.logger.Warn("browser minute ceiling reached", "minutes", u.BrowserMinutes())
		return false
	case u.EstimatedUSD >= c.cfg.HourlyUSD:
		c.logger.Warn("cost ceiling reached", "usd", u.EstimatedUSD)
		return false
	}
	return true
}

// RecordFetch credits one fetch attempt against the current hour. Browser
// strategies additionally consume browser time for their elapsed duration.
func (c *Controller) RecordFetch(strategy types.Strategy, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.currentLocked()
	u.Requests++
	u.EstimatedUSD += costPerRequest
	if strategy.UsesBrowser() {
		u.BrowserSeconds += elapsed.Seconds()
		u.EstimatedUSD += elapsed.Minutes() * costPerBrowserMinute
	}
}

// RecordTokens credits LLM token consumption (downstream synthesis reports
// through the same controller so the call path sees one spend).
func (c *Controller) RecordTokens(tokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.currentLocked()
	u.LLMTokens += tokens
	u.EstimatedUSD += float64(tokens) * costPerToken
}

// Snapshot describes current-hour consumption against the ceilings.
type Snapshot struct {
	Hour     string          `json:"hour"`
	Current  Usage           `json:"current"`
	Limits   config.CostConfig `json:"limits"`
	Exceeded map[string]bool `json:"exceeded"`
}

// UsageSnapshot returns the current hour's usage and exceeded flags.
func (c *Controller) UsageSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.currentLocked()
	return Snapshot{
		Hour:    c.hourKeyLocked(),
		Current: *u,
		Limits:  c.cfg,
		Exceeded: map[string]bool{
			"tokens":          u.LLMTokens >= c.cfg.HourlyTokens,
			"browser_minutes": u.BrowserMinutes() >= c.cfg.HourlyBrowserMinutes,
			"requests":        u.Requests >= c.cfg.HourlyRequests,
			"usd":             u.EstimatedUSD >= c.cfg.HourlyUSD,
		},
	}
}

func (c *Controller) hourKeyLocked() string {
	return c.clock().UTC().Format("2006-01-02-15")
}

// currentLocked returns the current hour bucket, creating it and evicting
// buckets older than two hours. Callers must hold c.mu.
func (c *Controller) currentLocked() *Usage {
	key := c.hourKeyLocked()
	u, ok := c.hourly[key]
	if !ok {
		u = &Usage{}
		c.hourly[key] = u

		cutoff := c.clock().UTC().Add(-2 * time.Hour).Format("2006-01-02-15")
		for k := range c.hourly {
			if k < cutoff {
				delete(c.hourly, k)
			}
		}
	}
	return u
}
