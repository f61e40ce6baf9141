package ratelimit

import (
	"testing"
	"time"
)

func TestLockTierPriority(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sig      QuotaSignal
		wantWait time.Duration
	}{
		{
			name:     "tier 1 retry-after capped",
			sig:      QuotaSignal{RetryAfter: 30 * time.Second},
			wantWait: capDelay,
		},
		{
			name:     "tier 1 retry-after under cap gets grace",
			sig:      QuotaSignal{RetryAfter: 3 * time.Second},
			wantWait: 3*time.Second + graceDelay,
		},
		{
			name:     "tier 2/3 absolute reset time",
			sig:      QuotaSignal{ResetAt: fixedNow.Add(45 * time.Second)},
			wantWait: 45 * time.Second,
		},
		{
			name:     "tier 4 default backoff on first failure",
			sig:      QuotaSignal{},
			wantWait: defaultCooldown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			tr.now = func() time.Time { return fixedNow }
			got := tr.Lock("acct-1", ReasonQuotaExhausted, tt.sig)
			if got != tt.wantWait {
				t.Errorf("Lock() wait = %v, want %v", got, tt.wantWait)
			}
			if !tr.IsRateLimited("acct-1") {
				t.Errorf("IsRateLimited() = false, want true immediately after Lock")
			}
		})
	}
}

func TestIsRateLimitedExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New()
	tr.now = func() time.Time { return now }
	tr.Lock("acct-1", ReasonUnknown, QuotaSignal{RetryAfter: time.Second})

	now = now.Add(2 * time.Second)
	if tr.IsRateLimited("acct-1") {
		t.Error("IsRateLimited() = true after lockout window elapsed")
	}
}

func TestMarkSuccessResetsFailures(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New()
	tr.now = func() time.Time { return now }
	tr.Lock("acct-1", ReasonUnknown, QuotaSignal{})
	tr.Lock("acct-1", ReasonUnknown, QuotaSignal{})

	tr.MarkSuccess("acct-1")

	tr.mu.Lock()
	failures := tr.entries["acct-1"].consecutiveFailures
	tr.mu.Unlock()
	if failures != 0 {
		t.Errorf("consecutiveFailures after MarkSuccess = %d, want 0", failures)
	}
}

func TestMinRemainingWait(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New()
	tr.now = func() time.Time { return now }
	tr.Lock("acct-1", ReasonUnknown, QuotaSignal{RetryAfter: 5 * time.Second})
	tr.Lock("acct-2", ReasonUnknown, QuotaSignal{RetryAfter: 1 * time.Second})

	got := tr.MinRemainingWait([]string{"acct-1", "acct-2", "acct-3"})
	want := 1*time.Second + graceDelay
	if got != want {
		t.Errorf("MinRemainingWait() = %v, want %v", got, want)
	}
}
