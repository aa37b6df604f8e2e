package profiler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/urwalabs/urwa/internal/types"
)

const probeBodyLimit = 32 * 1024

// Risk score weights. The score is advisory; the classification ladder in
// classify decides the level.
const (
	weightChallenge  = 40
	weightCloudflare = 20
	weightCaptcha    = 30
	weightJSRequired = 15
	weightRedirects  = 10
	weight4xx        = 25
)

// probeResult carries the raw signals extracted by one probe.
type probeResult struct {
	status     int
	headers    http.Header
	body       []byte
	redirects  int
	retryAfter bool
	reachable  bool
}

// probe issues a HEAD followed by a truncated GET and classifies the
// domain from the combined signals. A network-level failure yields an
// assumed-medium profile with a short TTL so the domain is re-probed soon.
func (p *Profiler) probe(ctx context.Context, u *url.URL, domain string) *types.SiteProfile {
	start := p.clock()
	res := p.doProbe(ctx, u)
	if !res.reachable {
		prof := p.assumedProfile(domain)
		prof.Warnings = []string{"probe failed: domain unreachable"}
		prof.TTL = 5 * time.Minute
		return prof
	}

	prof := classify(res)
	prof.Domain = domain
	prof.ComputedAt = p.clock()
	prof.TTL = p.ttlFor(prof.Risk)
	prof.RecommendedDelay = delayByRisk[prof.Risk]

	p.logger.Info("domain profiled",
		"domain", domain,
		"risk", prof.Risk,
		"score", prof.RiskScore,
		"strategy", prof.RecommendedStrategy,
		"probe_ms", p.clock().Sub(start).Milliseconds())
	return prof
}

func (p *Profiler) doProbe(ctx context.Context, u *url.URL) probeResult {
	var res probeResult

	probeURL := *u
	head, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL.String(), nil)
	if err != nil {
		return res
	}
	head.Header.Set("User-Agent", p.userAgent)
	if resp, err := p.client.Do(head); err == nil {
		resp.Body.Close()
		res.reachable = true
		res.status = resp.StatusCode
		res.headers = resp.Header
		if resp.Header.Get("Retry-After") != "" {
			res.retryAfter = true
		}
	}

	get, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL.String(), nil)
	if err != nil {
		return res
	}
	get.Header.Set("User-Agent", p.userAgent)
	get.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := p.client.Do(get)
	if err != nil {
		return res
	}
	defer resp.Body.Close()

	res.reachable = true
	res.status = resp.StatusCode
	res.headers = resp.Header
	if resp.Header.Get("Retry-After") != "" {
		res.retryAfter = true
	}
	if resp.Request != nil && resp.Request.URL.String() != probeURL.String() {
		res.redirects = 1
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	res.body = body
	return res
}

// challengeMarkers appear in interstitial pages served by bot walls.
var challengeMarkers = []string{
	"challenge", "cf-chl", "turnstile", "checking your browser",
	"recaptcha", "hcaptcha",
}

// classify applies the risk ladder in order; first match wins.
func classify(res probeResult) *types.SiteProfile {
	prof := &types.SiteProfile{}
	lower := strings.ToLower(string(res.body))
	score := 0

	hasChallengeMarker := false
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			hasChallengeMarker = true
			break
		}
	}
	cloudflare := isCloudflare(res.headers)
	textLen, scriptBytes, ratio := textProfile(res.body)

	if hasChallengeMarker {
		score += weightChallenge
		prof.Protections = append(prof.Protections, types.ProtCaptchaLikely)
	}
	if cloudflare {
		score += weightCloudflare
		prof.Protections = append(prof.Protections, types.ProtCloudflareLike)
	}
	if res.status == http.StatusTooManyRequests || res.retryAfter {
		score += weightCaptcha
		prof.Protections = append(prof.Protections, types.ProtRateLimitSignal)
	}
	jsHeavy := textLen < 256 && scriptBytes > 100*1024 && ratio < 0.05
	if jsHeavy {
		score += weightJSRequired
		prof.Protections = append(prof.Protections, types.ProtJSRequired)
	}
	if res.redirects > 2 {
		score += weightRedirects
	}
	if res.status >= 400 && res.status < 500 && res.status != http.StatusTooManyRequests {
		score += weight4xx
		if res.status == http.StatusUnauthorized {
			prof.Protections = append(prof.Protections, types.ProtLoginWall)
		}
	}
	if score > 100 {
		score = 100
	}
	prof.RiskScore = score

	switch {
	case len(res.body) < 512 && hasChallengeMarker:
		prof.Risk = types.RiskExtreme
		prof.RecommendedStrategy = types.StrategyUltra
	case cloudflare && (res.status == http.StatusForbidden || res.status == http.StatusServiceUnavailable):
		prof.Risk = types.RiskHigh
		prof.RecommendedStrategy = types.StrategyUltra
	case res.status == http.StatusTooManyRequests || res.retryAfter:
		prof.Risk = types.RiskHigh
		prof.RecommendedStrategy = types.StrategyStealth
	case jsHeavy:
		prof.Risk = types.RiskMedium
		prof.RecommendedStrategy = types.StrategyStealth
	case res.status == http.StatusOK && textLen >= 2*1024:
		prof.Risk = types.RiskLow
		prof.RecommendedStrategy = types.StrategyLight
	case res.status >= 400 && res.status < 500:
		prof.Risk = types.RiskMedium
		prof.RecommendedStrategy = types.StrategyStealth
	default:
		prof.Risk = types.RiskMedium
		prof.RecommendedStrategy = types.StrategyLight
	}
	return prof
}

func isCloudflare(h http.Header) bool {
	if h == nil {
		return false
	}
	if h.Get("cf-ray") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(h.Get("Server")), "cloudflare")
}

// textProfile extracts visible text length, total script payload, and the
// text/markup ratio from an HTML body. Non-HTML bodies count fully as text.
func textProfile(body []byte) (textLen, scriptBytes int, ratio float64) {
	if len(body) == 0 {
		return 0, 0, 0
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return len(body), 0, 1
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	textLen = len(text)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scriptBytes += len(s.Text())
		if src, ok := s.Attr("src"); ok && src != "" {
			// External bundles count a nominal size; the probe cannot
			// afford to download them.
			scriptBytes += 32 * 1024
		}
	})
	ratio = float64(textLen) / float64(len(body))
	return textLen, scriptBytes, ratio
}
