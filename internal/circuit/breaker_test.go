package circuit

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testConfig() config.CircuitConfig {
	return config.CircuitConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  300 * time.Second,
		HalfOpenMax:      3,
		BlockedURLWindow: 10 * time.Minute,
		BlockedURLCount:  3,
	}
}

// fakeClock lets tests move time forward.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(cfg config.CircuitConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newBreaker("example.com", cfg, testLogger, clock.Now), clock
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(testConfig())

	for i := 0; i < 4; i++ {
		b.RecordFailure(types.FailTimeout, "https://example.com/a")
		if ok, _ := b.CanExecute(); !ok {
			t.Fatalf("breaker opened after %d failures, threshold is 5", i+1)
		}
	}
	b.RecordFailure(types.FailTimeout, "https://example.com/a")
	if ok, _ := b.CanExecute(); ok {
		t.Error("breaker should be open after 5 consecutive failures")
	}
	if got := b.State(); got != StateOpen {
		t.Errorf("state = %s, want open", got)
	}
}

func TestSuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	for i := 0; i < 4; i++ {
		b.RecordFailure(types.FailServer, "https://example.com/a")
	}
	b.RecordSuccess()
	for i := 0; i < 4; i++ {
		b.RecordFailure(types.FailServer, "https://example.com/a")
	}
	if ok, _ := b.CanExecute(); !ok {
		t.Error("success should have reset the consecutive counter")
	}
}

func TestSingleBlockedURLDoesNotOpen(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	for i := 0; i < 10; i++ {
		b.RecordFailure(types.FailBlocked, "https://example.com/protected")
	}
	if ok, _ := b.CanExecute(); !ok {
		t.Error("repeated blocks on one URL must not open the circuit")
	}
}

func TestDistinctBlockedURLsOpenWithinWindow(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	b.RecordFailure(types.FailBlocked, "https://example.com/a")
	b.RecordFailure(types.FailBlocked, "https://example.com/b")
	if ok, _ := b.CanExecute(); !ok {
		t.Fatal("two distinct blocked URLs should not open")
	}
	b.RecordFailure(types.FailBlocked, "https://example.com/c")
	if ok, _ := b.CanExecute(); ok {
		t.Error("three distinct blocked URLs within the window should open")
	}
}

func TestBlockedWindowExpires(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	b.RecordFailure(types.FailBlocked, "https://example.com/a")
	b.RecordFailure(types.FailBlocked, "https://example.com/b")
	clock.Advance(11 * time.Minute)
	b.RecordFailure(types.FailBlocked, "https://example.com/c")
	if ok, _ := b.CanExecute(); !ok {
		t.Error("stale blocked URLs outside the window must not count")
	}
}

func TestHalfOpenAdmitsBoundedProbes(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure(types.FailTimeout, "https://example.com/a")
	}
	if ok, _ := b.CanExecute(); ok {
		t.Fatal("expected open")
	}

	clock.Advance(301 * time.Second)
	admitted := 0
	for i := 0; i < 5; i++ {
		if ok, _ := b.CanExecute(); ok {
			admitted++
		}
	}
	if admitted != 3 {
		t.Errorf("half-open admitted %d probes, want 3", admitted)
	}
}

func TestHalfOpenAbortedAdmissionsReleaseSlots(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure(types.FailTimeout, "https://example.com/a")
	}
	clock.Advance(301 * time.Second)

	// Admissions that end without a recorded outcome must hand their probe
	// slot back, otherwise the breaker would refuse the domain forever.
	for i := 0; i < 3; i++ {
		ok, release := b.CanExecute()
		if !ok {
			t.Fatalf("admission %d refused", i)
		}
		release()
		release() // calling twice must not free a second slot
	}

	ok, release := b.CanExecute()
	if !ok {
		t.Fatal("probe slot not reclaimed after aborted admissions")
	}
	b.RecordSuccess()
	release()
	if got := b.State(); got != StateClosed {
		t.Errorf("state = %s, want closed after the reclaimed probe succeeded", got)
	}
}

func TestHalfOpenDoubleReleaseKeepsProbesBounded(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure(types.FailTimeout, "https://example.com/a")
	}
	clock.Advance(301 * time.Second)

	ok, release := b.CanExecute()
	if !ok {
		t.Fatal("expected probe admission")
	}
	release()
	release()

	admitted := 0
	for i := 0; i < 5; i++ {
		if ok, _ := b.CanExecute(); ok {
			admitted++
		}
	}
	if admitted != 3 {
		t.Errorf("admitted %d probes after a double release, want capacity 3", admitted)
	}
}

func TestHalfOpenFirstSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure(types.FailTimeout, "https://example.com/a")
	}
	clock.Advance(301 * time.Second)
	if ok, _ := b.CanExecute(); !ok {
		t.Fatal("expected half-open probe admission")
	}
	b.RecordSuccess()
	if got := b.State(); got != StateClosed {
		t.Errorf("state = %s, want closed after first clean probe", got)
	}
	if ok, _ := b.CanExecute(); !ok {
		t.Error("closed breaker must admit")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure(types.FailTimeout, "https://example.com/a")
	}
	clock.Advance(301 * time.Second)
	if ok, _ := b.CanExecute(); !ok {
		t.Fatal("expected half-open probe admission")
	}
	b.RecordFailure(types.FailServer, "https://example.com/a")
	if got := b.State(); got != StateOpen {
		t.Errorf("state = %s, want open after failed probe", got)
	}
	if ok, _ := b.CanExecute(); ok {
		t.Error("reopened breaker must refuse before the recovery timeout")
	}
}

func TestNonCircuitKindsIgnored(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	for i := 0; i < 20; i++ {
		b.RecordFailure(types.FailParseEmpty, "https://example.com/a")
		b.RecordFailure(types.FailUnknown, "https://example.com/b")
	}
	if ok, _ := b.CanExecute(); !ok {
		t.Error("parse_empty and unknown must not trip the breaker")
	}
}

func TestRegistrySnapshotsSorted(t *testing.T) {
	r := NewRegistry(testConfig(), testLogger)
	for _, d := range []string{"c.com", "a.com", "b.com"} {
		r.For(d)
	}
	snaps := r.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	for i, want := range []string{"a.com", "b.com", "c.com"} {
		if snaps[i].Domain != want {
			t.Errorf("snapshot[%d] = %s, want %s", i, snaps[i].Domain, want)
		}
	}
	if r.For("a.com") != r.For("a.com") {
		t.Error("registry must return the same breaker per domain")
	}
}
