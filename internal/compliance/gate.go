// Package compliance gates every fetch against robots.txt and the domain
// blacklist before any network traffic toward the target is allowed.
package compliance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

// Decision is the outcome of a compliance check. Kind distinguishes the
// denial modes: blacklisted domains report as blocked, robots.txt denials
// as compliance_denied (non-retryable).
type Decision struct {
	Allowed    bool
	Reason     string
	Kind       types.FailureKind
	CrawlDelay time.Duration
	// Warning is set for domains on the caution list; the fetch proceeds
	// but the result carries the warning.
	Warning string
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	ttl       time.Duration
}

func (e *robotsEntry) expired(now time.Time) bool {
	return now.Sub(e.fetchedAt) > e.ttl
}

// Gate checks scrape targets against a blacklist and cached robots.txt
// verdicts. Robots files are fetched once per host and cached for the
// configured TTL; fetch failures are treated as permissive with a shorter
// TTL so a transient outage does not block a domain for a day.
type Gate struct {
	cfg       config.ComplianceConfig
	userAgent string
	client    *http.Client
	logger    *slog.Logger
	clock     func() time.Time

	mu     sync.Mutex
	robots map[string]*robotsEntry
}

// NewGate creates a compliance gate.
func NewGate(cfg config.ComplianceConfig, userAgent string, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:       cfg,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With("component", "compliance"),
		clock:  time.Now,
		robots: make(map[string]*robotsEntry),
	}
}

// Check decides whether a URL may be fetched. Blacklist denial wins over
// everything; robots.txt is consulted only when respect_robots is enabled.
func (g *Gate) Check(ctx context.Context, u *url.URL) Decision {
	domain := types.RegisteredDomain(u.Hostname())

	if reason, denied := g.blacklisted(domain); denied {
		g.logger.Warn("domain blacklisted", "domain", domain)
		return Decision{Allowed: false, Reason: reason, Kind: types.FailBlocked}
	}

	d := Decision{Allowed: true}
	if warning, ok := g.cautioned(domain); ok {
		d.Warning = warning
	}

	if !g.cfg.RespectRobots {
		return d
	}

	data := g.robotsFor(ctx, u)
	if data == nil {
		// Unreachable robots.txt is treated as allow-all.
		return d
	}

	group := data.FindGroup(g.userAgent)
	if group == nil {
		return d
	}
	if !group.Test(u.Path) {
		g.logger.Info("robots.txt disallows path", "domain", domain, "path", u.Path)
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("robots.txt disallows %s for %s", u.Path, g.userAgent),
			Kind:    types.FailComplianceDenied,
			Warning: d.Warning,
		}
	}
	if group.CrawlDelay > 0 {
		d.CrawlDelay = group.CrawlDelay
	}
	return d
}

func (g *Gate) blacklisted(domain string) (string, bool) {
	for _, entry := range g.cfg.Blacklist {
		e := strings.ToLower(strings.TrimSpace(entry))
		if e == "" {
			continue
		}
		if domain == e || strings.HasSuffix(domain, "."+e) {
			return fmt.Sprintf("domain %s is blacklisted", domain), true
		}
	}
	return "", false
}

func (g *Gate) cautioned(domain string) (string, bool) {
	for entry, note := range g.cfg.CautionList {
		e := strings.ToLower(strings.TrimSpace(entry))
		if domain == e || strings.HasSuffix(domain, "."+e) {
			return note, true
		}
	}
	return "", false
}

// robotsFor returns parsed robots.txt for the URL's host, fetching and
// caching it on miss. A nil return means no usable robots data (allow).
func (g *Gate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(u.Host)

	g.mu.Lock()
	entry, ok := g.robots[host]
	if ok && !entry.expired(g.clock()) {
		g.mu.Unlock()
		return entry.data
	}
	g.mu.Unlock()

	data, failed := g.fetchRobots(ctx, u)
	ttl := g.cfg.RobotsTTL
	if failed {
		ttl = g.cfg.FailureTTL
	}

	g.mu.Lock()
	g.robots[host] = &robotsEntry{data: data, fetchedAt: g.clock(), ttl: ttl}
	g.mu.Unlock()
	return data
}

// fetchRobots retrieves and parses robots.txt. The failed flag marks
// network-level failures so the entry gets the shorter failure TTL.
func (g *Gate) fetchRobots(ctx context.Context, u *url.URL) (data *robotstxt.RobotsData, failed bool) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, true
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt fetch failed", "url", robotsURL, "error", err)
		return nil, true
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, true
	}

	data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		g.logger.Debug("robots.txt parse failed", "url", robotsURL, "error", err)
		return nil, false
	}
	return data, false
}
