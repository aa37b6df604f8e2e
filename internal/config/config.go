package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the URWA scraping core.
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"     yaml:"engine"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Rate       RateConfig       `mapstructure:"rate"       yaml:"rate"`
	Circuit    CircuitConfig    `mapstructure:"circuit"    yaml:"circuit"`
	Profiler   ProfilerConfig   `mapstructure:"profiler"   yaml:"profiler"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	Compliance ComplianceConfig `mapstructure:"compliance" yaml:"compliance"`
	Learner    LearnerConfig    `mapstructure:"learner"    yaml:"learner"`
	Evidence   EvidenceConfig   `mapstructure:"evidence"   yaml:"evidence"`
	Cost       CostConfig       `mapstructure:"cost"       yaml:"cost"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// EngineConfig controls the orchestrator.
type EngineConfig struct {
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"    yaml:"default_timeout"`
	UserAgent        string        `mapstructure:"user_agent"         yaml:"user_agent"`
	SSRFAllowPrivate bool          `mapstructure:"ssrf_allow_private" yaml:"ssrf_allow_private"`
}

// FetcherConfig controls the three fetch strategies.
type FetcherConfig struct {
	LightTimeout   time.Duration `mapstructure:"light_timeout"   yaml:"light_timeout"`
	StealthTimeout time.Duration `mapstructure:"stealth_timeout" yaml:"stealth_timeout"`
	UltraTimeout   time.Duration `mapstructure:"ultra_timeout"   yaml:"ultra_timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
	MaxRedirects   int           `mapstructure:"max_redirects"   yaml:"max_redirects"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// RateConfig controls per-domain pacing.
type RateConfig struct {
	DefaultDelay time.Duration `mapstructure:"default_delay" yaml:"default_delay"`
	MinDelay     time.Duration `mapstructure:"min_delay"     yaml:"min_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"     yaml:"max_delay"`
}

// CircuitConfig controls per-domain circuit breakers.
type CircuitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"  yaml:"recovery_timeout"`
	HalfOpenMax      int64         `mapstructure:"half_open_max"     yaml:"half_open_max"`
	BlockedURLWindow time.Duration `mapstructure:"blocked_url_window" yaml:"blocked_url_window"`
	BlockedURLCount  int           `mapstructure:"blocked_url_count"  yaml:"blocked_url_count"`
}

// ProfilerConfig controls site profiling.
type ProfilerConfig struct {
	TTL        time.Duration `mapstructure:"ttl"         yaml:"ttl"`
	ExtremeTTL time.Duration `mapstructure:"extreme_ttl" yaml:"extreme_ttl"`
	ProbeWait  time.Duration `mapstructure:"probe_wait"  yaml:"probe_wait"`
	MaxDomains int           `mapstructure:"max_domains" yaml:"max_domains"`
	// KnownRisk forces a risk level for domains with well-known protection,
	// skipping the probe. Keys are registered domains.
	KnownRisk map[string]string `mapstructure:"known_risk" yaml:"known_risk"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"         yaml:"ttl"`
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries"`
}

// ComplianceConfig controls robots.txt and the domain blacklist.
type ComplianceConfig struct {
	RespectRobots bool              `mapstructure:"respect_robots" yaml:"respect_robots"`
	RobotsTTL     time.Duration     `mapstructure:"robots_ttl"     yaml:"robots_ttl"`
	FailureTTL    time.Duration     `mapstructure:"failure_ttl"    yaml:"failure_ttl"`
	Blacklist     []string          `mapstructure:"blacklist"      yaml:"blacklist"`
	CautionList   map[string]string `mapstructure:"caution_list"   yaml:"caution_list"`
}

// LearnerConfig controls strategy-learning persistence.
type LearnerConfig struct {
	JournalPath   string        `mapstructure:"journal_path"   yaml:"journal_path"`
	CompactFactor int           `mapstructure:"compact_factor" yaml:"compact_factor"`
	DecayAfter    time.Duration `mapstructure:"decay_after"    yaml:"decay_after"`
}

// EvidenceConfig controls failure artifact capture.
type EvidenceConfig struct {
	Dir            string `mapstructure:"dir"             yaml:"dir"`
	RetentionCount int    `mapstructure:"retention_count" yaml:"retention_count"`
	BodyExcerptMax int    `mapstructure:"body_excerpt_max" yaml:"body_excerpt_max"`
}

// CostConfig controls hourly resource ceilings.
type CostConfig struct {
	HourlyTokens         int64   `mapstructure:"hourly_tokens"          yaml:"hourly_tokens"`
	HourlyBrowserMinutes float64 `mapstructure:"hourly_browser_minutes" yaml:"hourly_browser_minutes"`
	HourlyRequests       int64   `mapstructure:"hourly_requests"        yaml:"hourly_requests"`
	HourlyUSD            float64 `mapstructure:"hourly_usd"             yaml:"hourly_usd"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DefaultTimeout:   180 * time.Second,
			UserAgent:        "UrwaBot/1.0",
			SSRFAllowPrivate: false,
		},
		Fetcher: FetcherConfig{
			LightTimeout:   15 * time.Second,
			StealthTimeout: 45 * time.Second,
			UltraTimeout:   120 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			MaxRedirects:   10,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			},
		},
		Rate: RateConfig{
			DefaultDelay: 1 * time.Second,
			MinDelay:     500 * time.Millisecond,
			MaxDelay:     60 * time.Second,
		},
		Circuit: CircuitConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  300 * time.Second,
			HalfOpenMax:      3,
			BlockedURLWindow: 10 * time.Minute,
			BlockedURLCount:  3,
		},
		Profiler: ProfilerConfig{
			TTL:        6 * time.Hour,
			ExtremeTTL: 15 * time.Minute,
			ProbeWait:  30 * time.Second,
			MaxDomains: 10_000,
			KnownRisk: map[string]string{
				"linkedin.com":   "extreme",
				"facebook.com":   "extreme",
				"instagram.com":  "extreme",
				"x.com":          "extreme",
				"twitter.com":    "extreme",
				"glassdoor.com":  "extreme",
				"g2.com":         "extreme",
				"amazon.com":     "high",
				"yelp.com":       "high",
				"tripadvisor.com": "high",
			},
		},
		Cache: CacheConfig{
			TTL:        time.Hour,
			MaxEntries: 10_000,
		},
		Compliance: ComplianceConfig{
			RespectRobots: true,
			RobotsTTL:     24 * time.Hour,
			FailureTTL:    time.Hour,
			CautionList: map[string]string{
				"linkedin.com":  "aggressive anti-scraping, ToS prohibits automated access",
				"facebook.com":  "strict ToS against scraping",
				"instagram.com": "ToS prohibits automated access",
			},
		},
		Learner: LearnerConfig{
			JournalPath:   "data/strategy_journal.jsonl",
			CompactFactor: 10,
			DecayAfter:    30 * 24 * time.Hour,
		},
		Evidence: EvidenceConfig{
			Dir:            "data/evidence",
			RetentionCount: 500,
			BodyExcerptMax: 4 * 1024,
		},
		Cost: CostConfig{
			HourlyTokens:         100_000,
			HourlyBrowserMinutes: 60,
			HourlyRequests:       1000,
			HourlyUSD:            1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// StrategyTimeout returns the fetch timeout for a strategy name.
func (f FetcherConfig) StrategyTimeout(strategy string) time.Duration {
	switch strategy {
	case "stealth":
		return f.StealthTimeout
	case "ultra":
		return f.UltraTimeout
	default:
		return f.LightTimeout
	}
}
