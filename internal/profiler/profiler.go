// Package profiler probes domains before the first real fetch and
// classifies how hostile they are to scraping. Profiles are cached per
// registered domain and steer both strategy selection and pacing.
package profiler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// delayByRisk is the default inter-request delay per risk level.
var delayByRisk = map[types.RiskLevel]time.Duration{
	types.RiskLow:     1 * time.Second,
	types.RiskMedium:  3 * time.Second,
	types.RiskHigh:    5 * time.Second,
	types.RiskExtreme: 10 * time.Second,
}

// Doer issues probe requests. The light fetcher's HTTP client satisfies
// it, so probes travel the same transport as light fetches.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Profiler caches one SiteProfile per registered domain. Cache misses
// trigger a single probe shared by all concurrent callers; callers that
// wait longer than the probe window fall through with an assumed-medium
// profile rather than stalling.
type Profiler struct {
	cfg       config.ProfilerConfig
	client    Doer
	userAgent string
	logger    *slog.Logger
	clock     func() time.Time
	group     singleflight.Group

	mu       sync.Mutex
	profiles map[string]*cached
	// terminalRuns counts consecutive terminal failures per domain for
	// profile invalidation.
	terminalRuns map[string]int
}

type cached struct {
	profile  *types.SiteProfile
	lastUsed time.Time
}

// New creates a profiler that probes through the given client.
func New(cfg config.ProfilerConfig, client Doer, userAgent string, logger *slog.Logger) *Profiler {
	return &Profiler{
		cfg:          cfg,
		client:       client,
		userAgent:    userAgent,
		logger:       logger.With("component", "profiler"),
		clock:        time.Now,
		profiles:     make(map[string]*cached),
		terminalRuns: make(map[string]int),
	}
}

// Get returns the profile for the URL's domain, probing on miss. Only one
// probe per domain runs at a time; callers that outwait ProbeWait get an
// assumed-medium profile which is not cached.
func (p *Profiler) Get(ctx context.Context, u *url.URL) *types.SiteProfile {
	domain := types.RegisteredDomain(u.Hostname())

	if prof := p.cachedProfile(domain); prof != nil {
		return prof
	}

	if risk, ok := p.cfg.KnownRisk[domain]; ok {
		prof := p.knownProfile(domain, types.RiskLevel(risk))
		p.store(domain, prof)
		return prof
	}

	ch := p.group.DoChan(domain, func() (any, error) {
		prof := p.probe(ctx, u, domain)
		p.store(domain, prof)
		return prof, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*types.SiteProfile)
	case <-time.After(p.cfg.ProbeWait):
		p.logger.Warn("probe wait exceeded, assuming medium risk", "domain", domain)
		return p.assumedProfile(domain)
	case <-ctx.Done():
		return p.assumedProfile(domain)
	}
}

// RecordTerminalFailure tracks consecutive terminal failures and drops the
// cached profile after three in a row so the next call re-probes.
func (p *Profiler) RecordTerminalFailure(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminalRuns[domain]++
	if p.terminalRuns[domain] >= 3 {
		delete(p.profiles, domain)
		p.terminalRuns[domain] = 0
		p.logger.Info("profile invalidated after repeated terminal failures", "domain", domain)
	}
}

// RecordSuccess resets the domain's terminal-failure run.
func (p *Profiler) RecordSuccess(domain string) {
	p.mu.Lock()
	delete(p.terminalRuns, domain)
	p.mu.Unlock()
}

// Invalidate drops the cached profile for a domain.
func (p *Profiler) Invalidate(domain string) {
	p.mu.Lock()
	delete(p.profiles, domain)
	p.mu.Unlock()
}

func (p *Profiler) cachedProfile(domain string) *types.SiteProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.profiles[domain]
	if !ok {
		return nil
	}
	if c.profile.Expired(p.clock()) {
		delete(p.profiles, domain)
		return nil
	}
	c.lastUsed = p.clock()
	return c.profile
}

// store caches a profile, evicting the least recently used entry when the
// domain cap is reached.
func (p *Profiler) store(domain string, prof *types.SiteProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.profiles) >= p.cfg.MaxDomains {
		var oldest string
		var oldestAt time.Time
		for d, c := range p.profiles {
			if oldest == "" || c.lastUsed.Before(oldestAt) {
				oldest, oldestAt = d, c.lastUsed
			}
		}
		delete(p.profiles, oldest)
	}
	p.profiles[domain] = &cached{profile: prof, lastUsed: p.clock()}
}

func (p *Profiler) knownProfile(domain string, risk types.RiskLevel) *types.SiteProfile {
	strategy := types.StrategyLight
	score := 10
	switch risk {
	case types.RiskMedium:
		strategy, score = types.StrategyStealth, 30
	case types.RiskHigh:
		strategy, score = types.StrategyStealth, 55
	case types.RiskExtreme:
		strategy, score = types.StrategyUltra, 80
	}
	return &types.SiteProfile{
		Domain:              domain,
		Risk:                risk,
		RiskScore:           score,
		RecommendedStrategy: strategy,
		RecommendedDelay:    delayByRisk[risk],
		ComputedAt:          p.clock(),
		TTL:                 p.ttlFor(risk),
	}
}

// assumedProfile is the fallback when a probe cannot complete in time. It
// is deliberately not cached.
func (p *Profiler) assumedProfile(domain string) *types.SiteProfile {
	return &types.SiteProfile{
		Domain:              domain,
		Risk:                types.RiskMedium,
		RiskScore:           25,
		RecommendedStrategy: types.StrategyStealth,
		RecommendedDelay:    delayByRisk[types.RiskMedium],
		ComputedAt:          p.clock(),
		TTL:                 time.Minute,
		Warnings:            []string{"profile assumed: probe did not complete"},
	}
}

func (p *Profiler) ttlFor(risk types.RiskLevel) time.Duration {
	if risk == types.RiskExtreme {
		return p.cfg.ExtremeTTL
	}
	return p.cfg.TTL
}
