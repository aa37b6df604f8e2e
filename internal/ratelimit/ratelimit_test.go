package ratelimit

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testConfig() config.RateConfig {
	return config.RateConfig{
		DefaultDelay: 1 * time.Second,
		MinDelay:     500 * time.Millisecond,
		MaxDelay:     60 * time.Second,
	}
}

func TestRecordOutcomeAdjustsDelay(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)

	l.RecordOutcome("example.com", &types.FetchOutcome{Kind: types.FailRateLimit})
	if got := l.Delay("example.com"); got != 2*time.Second {
		t.Errorf("after 429: delay = %s, want 2s", got)
	}

	l.RecordOutcome("example.com", &types.FetchOutcome{Kind: types.FailRateLimit})
	if got := l.Delay("example.com"); got != 4*time.Second {
		t.Errorf("after second 429: delay = %s, want 4s", got)
	}

	l.RecordOutcome("example.com", &types.FetchOutcome{Success: true})
	if got := l.Delay("example.com"); got != 3600*time.Millisecond {
		t.Errorf("after success: delay = %s, want 3.6s", got)
	}
}

func TestTimeoutStretchesDelay(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)
	l.RecordOutcome("example.com", &types.FetchOutcome{Kind: types.FailTimeout})
	if got := l.Delay("example.com"); got != 1250*time.Millisecond {
		t.Errorf("after timeout: delay = %s, want 1.25s", got)
	}
}

func TestDelayClampedToMax(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)
	for i := 0; i < 10; i++ {
		l.RecordOutcome("example.com", &types.FetchOutcome{Kind: types.FailRateLimit})
	}
	if got := l.Delay("example.com"); got != 60*time.Second {
		t.Errorf("delay = %s, want clamp at 60s", got)
	}
}

func TestSuccessDecaysToBaseNotBelow(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)
	for i := 0; i < 50; i++ {
		l.RecordOutcome("example.com", &types.FetchOutcome{Success: true})
	}
	if got := l.Delay("example.com"); got != 1*time.Second {
		t.Errorf("delay = %s, want floor at base 1s", got)
	}
}

func TestRetryAfterOverridesDoubling(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)
	l.RecordOutcome("example.com", &types.FetchOutcome{
		Kind:       types.FailRateLimit,
		RetryAfter: 30 * time.Second,
	})
	if got := l.Delay("example.com"); got != 30*time.Second {
		t.Errorf("delay = %s, want server-directed 30s", got)
	}
}

func TestSetMinimumNeverLowers(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)
	l.SetMinimum("example.com", 5*time.Second)
	if got := l.Delay("example.com"); got != 5*time.Second {
		t.Errorf("delay = %s, want 5s", got)
	}
	l.SetMinimum("example.com", 2*time.Second)
	if got := l.Delay("example.com"); got != 5*time.Second {
		t.Errorf("delay = %s, SetMinimum must not lower", got)
	}
}

func TestAcquireSlotPacesSecondCaller(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultDelay = 100 * time.Millisecond
	l := NewLimiter(cfg, testLogger)

	ctx := context.Background()
	start := time.Now()
	if err := l.AcquireSlot(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if err := l.AcquireSlot(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("second acquire returned after %s, want >= ~100ms spacing", elapsed)
	}
}

func TestAcquireSlotHonorsCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultDelay = 10 * time.Second
	l := NewLimiter(cfg, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.AcquireSlot(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- l.AcquireSlot(ctx, "example.com") }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock on cancellation")
	}
}

func TestCancelledAcquireStillConsumesWindow(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultDelay = 100 * time.Millisecond
	l := NewLimiter(cfg, testLogger)

	if err := l.AcquireSlot(context.Background(), "example.com"); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.AcquireSlot(cancelled, "example.com"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The aborted acquirer claimed its window up front, so the next caller
	// queues behind both.
	start := time.Now()
	if err := l.AcquireSlot(context.Background(), "example.com"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("third acquire returned after %s, want >= ~200ms behind the claimed window", elapsed)
	}
}

func TestDifferentDomainsDoNotBlock(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultDelay = 10 * time.Second
	l := NewLimiter(cfg, testLogger)

	ctx := context.Background()
	if err := l.AcquireSlot(ctx, "a.com"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.AcquireSlot(ctx, "b.com"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("acquire on a different domain should not wait")
	}
}

func TestStatesSnapshot(t *testing.T) {
	l := NewLimiter(testConfig(), testLogger)
	l.RecordOutcome("a.com", &types.FetchOutcome{Kind: types.FailRateLimit})
	_ = l.AcquireSlot(context.Background(), "b.com")

	states := l.States()
	if len(states) != 2 {
		t.Fatalf("got %d states, want 2", len(states))
	}
	for _, s := range states {
		if s.Domain == "a.com" && s.Throttles != 1 {
			t.Errorf("a.com throttles = %d, want 1", s.Throttles)
		}
	}
}
