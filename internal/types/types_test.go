package types

import (
	"testing"
	"time"
)

func TestFailureKindClasses(t *testing.T) {
	tests := []struct {
		kind     FailureKind
		terminal bool
		escalate bool
		circuit  bool
	}{
		{FailTimeout, false, false, true},
		{FailConnection, false, false, true},
		{FailBlocked, false, true, false},
		{FailRateLimit, false, false, true},
		{FailServer, false, false, true},
		{FailChallenge, false, true, true},
		{FailParseEmpty, false, true, false},
		{FailUnknown, false, false, false},
		{FailInvalidURL, true, false, false},
		{FailComplianceDenied, true, false, false},
		{FailCircuitOpen, true, false, false},
		{FailCostExceeded, true, false, false},
		{FailCancelled, true, false, false},
		{FailInternal, true, false, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.kind, got, tt.terminal)
		}
		if got := tt.kind.Escalates(); got != tt.escalate {
			t.Errorf("%s.Escalates() = %v, want %v", tt.kind, got, tt.escalate)
		}
		if got := tt.kind.CountsTowardCircuit(); got != tt.circuit {
			t.Errorf("%s.CountsTowardCircuit() = %v, want %v", tt.kind, got, tt.circuit)
		}
	}
}

func TestStrategyOrdering(t *testing.T) {
	if !StrategyUltra.HeavierThan(StrategyStealth) || !StrategyStealth.HeavierThan(StrategyLight) {
		t.Fatal("escalation order broken")
	}
	if StrategyLight.UsesBrowser() {
		t.Error("light must not use a browser")
	}
	if !StrategyStealth.UsesBrowser() || !StrategyUltra.UsesBrowser() {
		t.Error("browser tiers misreported")
	}
	if _, err := ParseStrategy("turbo"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"HTTP://Example.COM:80/path/", "http://example.com/path"},
		{"https://example.com:443/", "https://example.com/"},
		{"https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"https://example.com/a#frag", "https://example.com/a"},
		{"https://example.com", "https://example.com/"},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintStability(t *testing.T) {
	a, _ := NewRequest("https://example.com/page?x=1&y=2")
	b, _ := NewRequest("https://EXAMPLE.com/page/?y=2&x=1")
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equivalent URLs should share a fingerprint")
	}

	c, _ := NewRequest("https://example.com/page?x=1&y=2")
	c.ForceStrategy = StrategyUltra
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("forced strategy must change the fingerprint")
	}

	d, _ := NewRequest("https://example.com/page?x=1&y=2")
	d.BypassCache = true
	d.TraceID = "other"
	if a.Fingerprint() != d.Fingerprint() {
		t.Error("trace ID and cache bypass must not change the fingerprint")
	}
}

func TestNewRequestValidation(t *testing.T) {
	if _, err := NewRequest("ftp://example.com/file"); err == nil {
		t.Error("expected scheme rejection")
	}
	if _, err := NewRequest("https://"); err == nil {
		t.Error("expected host rejection")
	}
	req, err := NewRequest("https://sub.example.co.uk/page")
	if err != nil {
		t.Fatalf("valid URL rejected: %v", err)
	}
	if got := req.DomainKey(); got != "example.co.uk" {
		t.Errorf("DomainKey() = %q, want example.co.uk", got)
	}
}

func TestRegisteredDomain(t *testing.T) {
	tests := []struct {
		host, want string
	}{
		{"www.example.com", "example.com"},
		{"a.b.example.co.uk", "example.co.uk"},
		{"localhost", "localhost"},
		{"192.168.1.1", "192.168.1.1"},
	}
	for _, tt := range tests {
		if got := RegisteredDomain(tt.host); got != tt.want {
			t.Errorf("RegisteredDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestStrategyStatTrust(t *testing.T) {
	tests := []struct {
		name    string
		stat    StrategyStat
		trusted bool
	}{
		{"cold start", StrategyStat{Attempts: 3, Successes: 3}, false},
		{"enough attempts, good rate", StrategyStat{Attempts: 5, Successes: 3}, true},
		{"enough attempts, bad rate", StrategyStat{Attempts: 10, Successes: 5}, false},
		{"exactly at bar", StrategyStat{Attempts: 5, Successes: 3, LastSuccessAt: time.Now()}, true},
	}
	for _, tt := range tests {
		if got := tt.stat.Trusted(); got != tt.trusted {
			t.Errorf("%s: Trusted() = %v, want %v", tt.name, got, tt.trusted)
		}
	}
}
