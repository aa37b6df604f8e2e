package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("URWA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("urwa")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".urwa"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides bind.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("engine.default_timeout", cfg.Engine.DefaultTimeout)
	v.SetDefault("engine.user_agent", cfg.Engine.UserAgent)
	v.SetDefault("engine.ssrf_allow_private", cfg.Engine.SSRFAllowPrivate)

	v.SetDefault("fetcher.light_timeout", cfg.Fetcher.LightTimeout)
	v.SetDefault("fetcher.stealth_timeout", cfg.Fetcher.StealthTimeout)
	v.SetDefault("fetcher.ultra_timeout", cfg.Fetcher.UltraTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("rate.default_delay", cfg.Rate.DefaultDelay)
	v.SetDefault("rate.min_delay", cfg.Rate.MinDelay)
	v.SetDefault("rate.max_delay", cfg.Rate.MaxDelay)

	v.SetDefault("circuit.failure_threshold", cfg.Circuit.FailureThreshold)
	v.SetDefault("circuit.recovery_timeout", cfg.Circuit.RecoveryTimeout)
	v.SetDefault("circuit.half_open_max", cfg.Circuit.HalfOpenMax)
	v.SetDefault("circuit.blocked_url_window", cfg.Circuit.BlockedURLWindow)
	v.SetDefault("circuit.blocked_url_count", cfg.Circuit.BlockedURLCount)

	v.SetDefault("profiler.ttl", cfg.Profiler.TTL)
	v.SetDefault("profiler.extreme_ttl", cfg.Profiler.ExtremeTTL)
	v.SetDefault("profiler.probe_wait", cfg.Profiler.ProbeWait)
	v.SetDefault("profiler.max_domains", cfg.Profiler.MaxDomains)

	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)

	v.SetDefault("compliance.respect_robots", cfg.Compliance.RespectRobots)
	v.SetDefault("compliance.robots_ttl", cfg.Compliance.RobotsTTL)
	v.SetDefault("compliance.failure_ttl", cfg.Compliance.FailureTTL)
	v.SetDefault("compliance.blacklist", cfg.Compliance.Blacklist)

	v.SetDefault("learner.journal_path", cfg.Learner.JournalPath)
	v.SetDefault("learner.compact_factor", cfg.Learner.CompactFactor)
	v.SetDefault("learner.decay_after", cfg.Learner.DecayAfter)

	v.SetDefault("evidence.dir", cfg.Evidence.Dir)
	v.SetDefault("evidence.retention_count", cfg.Evidence.RetentionCount)
	v.SetDefault("evidence.body_excerpt_max", cfg.Evidence.BodyExcerptMax)

	v.SetDefault("cost.hourly_tokens", cfg.Cost.HourlyTokens)
	v.SetDefault("cost.hourly_browser_minutes", cfg.Cost.HourlyBrowserMinutes)
	v.SetDefault("cost.hourly_requests", cfg.Cost.HourlyRequests)
	v.SetDefault("cost.hourly_usd", cfg.Cost.HourlyUSD)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
