package types

import "time"

// RiskLevel grades how hostile a domain is to automated access.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// Protection flags detected while probing a site.
type Protection string

const (
	ProtJSRequired      Protection = "js_required"
	ProtCloudflareLike  Protection = "cloudflare_like"
	ProtCaptchaLikely   Protection = "captcha_likely"
	ProtLoginWall       Protection = "login_wall"
	ProtRateLimitSignal Protection = "rate_limit_signal"
)

// SiteProfile is the cached classification of a domain. It drives the
// initial strategy choice and the rate controller's starting delay.
type SiteProfile struct {
	Domain              string        `json:"domain"`
	Risk                RiskLevel     `json:"risk"`
	RiskScore           int           `json:"risk_score"` // 0-100, advisory
	Protections         []Protection  `json:"protections,omitempty"`
	RecommendedStrategy Strategy      `json:"recommended_strategy"`
	RecommendedDelay    time.Duration `json:"recommended_delay"`
	Warnings            []string      `json:"warnings,omitempty"`
	ComputedAt          time.Time     `json:"computed_at"`
	TTL                 time.Duration `json:"ttl"`
}

// Expired reports whether the profile is past its TTL at the given time.
func (p *SiteProfile) Expired(now time.Time) bool {
	return now.Sub(p.ComputedAt) >= p.TTL
}

// Has reports whether the profile detected the given protection.
func (p *SiteProfile) Has(prot Protection) bool {
	for _, got := range p.Protections {
		if got == prot {
			return true
		}
	}
	return false
}

// StrategyStat accumulates learning for one (domain, strategy) pair.
type StrategyStat struct {
	Attempts      int       `json:"attempts"`
	Successes     int       `json:"successes"`
	AvgResponseMS float64   `json:"avg_response_ms"`
	LastSuccessAt time.Time `json:"last_success_at,omitzero"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitzero"`
}

// SuccessRate returns successes over attempts, zero-safe.
func (s StrategyStat) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// Trusted reports whether the strategy has enough history on this domain to
// bias selection: at least 5 attempts with a success rate of 0.6 or better.
func (s StrategyStat) Trusted() bool {
	return s.Attempts >= 5 && s.SuccessRate() >= 0.6
}
