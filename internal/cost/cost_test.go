package cost

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testConfig() config.CostConfig {
	return config.CostConfig{
		HourlyTokens:         1000,
		HourlyBrowserMinutes: 2,
		HourlyRequests:       5,
		HourlyUSD:            1.0,
	}
}

func TestRequestCeiling(t *testing.T) {
	c := NewController(testConfig(), testLogger)
	for i := 0; i < 5; i++ {
		if !c.Admit(types.StrategyLight) {
			t.Fatalf("admit refused at request %d, ceiling is 5", i)
		}
		c.RecordFetch(types.StrategyLight, 100*time.Millisecond)
	}
	if c.Admit(types.StrategyLight) {
		t.Error("admit should refuse once the request ceiling is hit")
	}
}

func TestBrowserMinuteCeilingOnlyGatesBrowserTiers(t *testing.T) {
	c := NewController(config.CostConfig{
		HourlyTokens:         1000,
		HourlyBrowserMinutes: 1,
		HourlyRequests:       1000,
		HourlyUSD:            100,
	}, testLogger)

	c.RecordFetch(types.StrategyStealth, 90*time.Second)
	if c.Admit(types.StrategyUltra) {
		t.Error("browser tier should be refused past the minute ceiling")
	}
	if !c.Admit(types.StrategyLight) {
		t.Error("light tier is not metered by browser minutes")
	}
}

func TestTokenCeiling(t *testing.T) {
	c := NewController(testConfig(), testLogger)
	c.RecordTokens(1000)
	if c.Admit(types.StrategyLight) {
		t.Error("admit should refuse once tokens are exhausted")
	}
}

func TestWindowSlidesToNewHour(t *testing.T) {
	c := NewController(testConfig(), testLogger)
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		c.RecordFetch(types.StrategyLight, time.Millisecond)
	}
	if c.Admit(types.StrategyLight) {
		t.Fatal("ceiling should be hit in the current hour")
	}

	now = now.Add(time.Hour)
	if !c.Admit(types.StrategyLight) {
		t.Error("a new hour starts a fresh budget")
	}
}

func TestOldBucketsEvicted(t *testing.T) {
	c := NewController(testConfig(), testLogger)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }
	c.RecordFetch(types.StrategyLight, time.Millisecond)

	for i := 0; i < 5; i++ {
		now = now.Add(time.Hour)
		c.RecordFetch(types.StrategyLight, time.Millisecond)
	}

	c.mu.Lock()
	buckets := len(c.hourly)
	c.mu.Unlock()
	if buckets > 3 {
		t.Errorf("hourly map holds %d buckets, want old keys evicted", buckets)
	}
}

func TestUsageSnapshot(t *testing.T) {
	c := NewController(testConfig(), testLogger)
	c.RecordFetch(types.StrategyStealth, 30*time.Second)
	c.RecordTokens(100)

	snap := c.UsageSnapshot()
	if snap.Current.Requests != 1 {
		t.Errorf("requests = %d, want 1", snap.Current.Requests)
	}
	if snap.Current.LLMTokens != 100 {
		t.Errorf("tokens = %d, want 100", snap.Current.LLMTokens)
	}
	if snap.Current.BrowserMinutes() != 0.5 {
		t.Errorf("browser minutes = %v, want 0.5", snap.Current.BrowserMinutes())
	}
	if snap.Exceeded["requests"] {
		t.Error("requests should not be flagged exceeded yet")
	}
}
