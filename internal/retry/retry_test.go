package retry

import (
	"testing"
	"time"

	"github.com/urwalabs/urwa/internal/types"
)

func failure(kind types.FailureKind) *types.FetchOutcome {
	return &types.FetchOutcome{Kind: kind}
}

func TestDecideRetryBudgets(t *testing.T) {
	tests := []struct {
		kind        types.FailureKind
		retriesUsed int
		wantRetry   bool
	}{
		{types.FailTimeout, 0, true},
		{types.FailTimeout, 1, false},
		{types.FailConnection, 0, true},
		{types.FailConnection, 1, true},
		{types.FailConnection, 2, false},
		{types.FailRateLimit, 0, true},
		{types.FailRateLimit, 2, false},
		{types.FailServer, 0, true},
		{types.FailServer, 1, false},
		{types.FailChallenge, 0, false},
		{types.FailBlocked, 0, false},
		{types.FailParseEmpty, 0, false},
		{types.FailComplianceDenied, 0, false},
		{types.FailCancelled, 0, false},
	}
	for _, tt := range tests {
		d := Decide(failure(tt.kind), tt.retriesUsed, 15*time.Second)
		if d.Retry != tt.wantRetry {
			t.Errorf("Decide(%s, used=%d).Retry = %v, want %v",
				tt.kind, tt.retriesUsed, d.Retry, tt.wantRetry)
		}
	}
}

func TestDecideTimeoutBackoffIsHalfStrategyTimeout(t *testing.T) {
	d := Decide(failure(types.FailTimeout), 0, 40*time.Second)
	if !d.Retry {
		t.Fatal("expected retry")
	}
	// 20s nominal, ±20% jitter.
	if d.Pause < 16*time.Second || d.Pause > 24*time.Second {
		t.Errorf("pause %s outside jittered half-timeout window", d.Pause)
	}
}

func TestDecideHonorsRetryAfter(t *testing.T) {
	out := failure(types.FailRateLimit)
	out.RetryAfter = 30 * time.Second
	d := Decide(out, 0, 15*time.Second)
	if !d.Retry {
		t.Fatal("expected retry")
	}
	// Retry-After (30s) beats the 5s default; jitter ±20%.
	if d.Pause < 24*time.Second || d.Pause > 36*time.Second {
		t.Errorf("pause %s does not honor Retry-After", d.Pause)
	}
}

func TestDecideConnectionBackoffGrows(t *testing.T) {
	first := Decide(failure(types.FailConnection), 0, 15*time.Second)
	second := Decide(failure(types.FailConnection), 1, 15*time.Second)
	if first.Pause > 1200*time.Millisecond || first.Pause < 800*time.Millisecond {
		t.Errorf("first backoff %s outside 1s ±20%%", first.Pause)
	}
	if second.Pause > 2400*time.Millisecond || second.Pause < 1600*time.Millisecond {
		t.Errorf("second backoff %s outside 2s ±20%%", second.Pause)
	}
}

func TestDecideSuccessAndNil(t *testing.T) {
	if d := Decide(nil, 0, time.Second); d.Retry {
		t.Error("nil outcome must not retry")
	}
	if d := Decide(&types.FetchOutcome{Success: true}, 0, time.Second); d.Retry {
		t.Error("success must not retry")
	}
}
