package config

import (
	"fmt"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Engine.DefaultTimeout <= 0 {
		return fmt.Errorf("engine.default_timeout must be > 0")
	}
	if cfg.Engine.UserAgent == "" {
		return fmt.Errorf("engine.user_agent must not be empty")
	}

	if cfg.Fetcher.LightTimeout <= 0 || cfg.Fetcher.StealthTimeout <= 0 || cfg.Fetcher.UltraTimeout <= 0 {
		return fmt.Errorf("fetcher timeouts must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Rate.MinDelay <= 0 {
		return fmt.Errorf("rate.min_delay must be > 0")
	}
	if cfg.Rate.MaxDelay < cfg.Rate.MinDelay {
		return fmt.Errorf("rate.max_delay must be >= rate.min_delay")
	}
	if cfg.Rate.DefaultDelay < cfg.Rate.MinDelay || cfg.Rate.DefaultDelay > cfg.Rate.MaxDelay {
		return fmt.Errorf("rate.default_delay must be within [min_delay, max_delay]")
	}

	if cfg.Circuit.FailureThreshold < 1 {
		return fmt.Errorf("circuit.failure_threshold must be >= 1, got %d", cfg.Circuit.FailureThreshold)
	}
	if cfg.Circuit.RecoveryTimeout <= 0 {
		return fmt.Errorf("circuit.recovery_timeout must be > 0")
	}
	if cfg.Circuit.HalfOpenMax < 1 {
		return fmt.Errorf("circuit.half_open_max must be >= 1, got %d", cfg.Circuit.HalfOpenMax)
	}

	if cfg.Profiler.TTL <= 0 || cfg.Profiler.ExtremeTTL <= 0 {
		return fmt.Errorf("profiler TTLs must be > 0")
	}
	for domain, risk := range cfg.Profiler.KnownRisk {
		switch risk {
		case "low", "medium", "high", "extreme":
		default:
			return fmt.Errorf("profiler.known_risk[%s] must be low/medium/high/extreme, got %q", domain, risk)
		}
	}

	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}

	if cfg.Evidence.RetentionCount < 1 {
		return fmt.Errorf("evidence.retention_count must be >= 1")
	}

	if cfg.Cost.HourlyRequests < 1 {
		return fmt.Errorf("cost.hourly_requests must be >= 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}
