package cache

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testConfig() config.CacheConfig {
	return config.CacheConfig{TTL: time.Hour, MaxEntries: 3}
}

func successResult(url string) *types.ScrapeResult {
	return &types.ScrapeResult{
		Status:       types.StatusSuccess,
		URL:          url,
		Content:      []byte("content"),
		StrategyUsed: types.StrategyLight,
		TraceID:      "t-1",
	}
}

func TestPutGetMarksCached(t *testing.T) {
	c := New(testConfig(), testLogger)
	c.Put("fp1", successResult("https://example.com"))

	got, ok := c.Get("fp1")
	if !ok {
		t.Fatal("expected hit")
	}
	if !got.Cached {
		t.Error("replayed result must be marked cached")
	}
	if string(got.Content) != "content" {
		t.Error("content lost")
	}
}

func TestFailuresNotCached(t *testing.T) {
	c := New(testConfig(), testLogger)
	c.Put("fp1", &types.ScrapeResult{Status: types.StatusError, FailureKind: types.FailTimeout})
	if _, ok := c.Get("fp1"); ok {
		t.Error("error results must never be cached")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(testConfig(), testLogger)
	now := time.Now()
	c.clock = func() time.Time { return now }
	c.Put("fp1", successResult("https://example.com"))

	c.clock = func() time.Time { return now.Add(61 * time.Minute) }
	if _, ok := c.Get("fp1"); ok {
		t.Error("entry past TTL must miss")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(testConfig(), testLogger)
	c.Put("fp1", successResult("https://a.com"))
	c.Put("fp2", successResult("https://b.com"))
	c.Put("fp3", successResult("https://c.com"))

	// Touch fp1 so fp2 is the LRU victim.
	c.Get("fp1")
	c.Put("fp4", successResult("https://d.com"))

	if _, ok := c.Get("fp2"); ok {
		t.Error("fp2 should have been evicted")
	}
	for _, fp := range []string{"fp1", "fp3", "fp4"} {
		if _, ok := c.Get(fp); !ok {
			t.Errorf("%s should have survived", fp)
		}
	}
}

func TestInvalidate(t *testing.T) {
	c := New(testConfig(), testLogger)
	c.Put("fp1", successResult("https://a.com"))
	c.Invalidate("fp1")
	if _, ok := c.Get("fp1"); ok {
		t.Error("invalidated entry must miss")
	}
}

func TestStats(t *testing.T) {
	c := New(testConfig(), testLogger)
	c.Put("fp1", successResult("https://a.com"))
	c.Get("fp1")
	c.Get("missing")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("stats = (%d, %d, %d), want (1, 1, 1)", hits, misses, size)
	}
}
