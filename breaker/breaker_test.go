package breaker

import (
	"testing"
	"time"
)

// newTestBreaker returns a breaker on a manual clock and a function that
// advances it.
func newTestBreaker(t *testing.T, cfg Config) (*DomainBreaker, func(time.Duration)) {
	t.Helper()
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time { return now }
	return b, func(d time.Duration) { now = now.Add(d) }
}

func mustCanRequest(t *testing.T, b *DomainBreaker, domain string) bool {
	t.Helper()
	ok, err := b.CanRequest(domain)
	if err != nil {
		t.Fatalf("CanRequest(%q) error = %v", domain, err)
	}
	return ok
}

func mustState(t *testing.T, b *DomainBreaker, domain string) State {
	t.Helper()
	st, err := b.GetState(domain)
	if err != nil {
		t.Fatalf("GetState(%q) error = %v", domain, err)
	}
	return st
}

func failN(t *testing.T, b *DomainBreaker, domain string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := b.RecordFailure(domain); err != nil {
			t.Fatalf("RecordFailure(%q) error = %v", domain, err)
		}
	}
}

func TestNeverSeenDomainIsClosed(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	if !mustCanRequest(t, b, "example.com") {
		t.Error("never-seen domain should allow requests")
	}
	if st := mustState(t, b, "example.com"); st != StateClosed {
		t.Errorf("state = %q, want %q", st, StateClosed)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", DefaultConfig(), true},
		{"zero cooldown", Config{FailureThreshold: 1, Cooldown: 0, HalfOpenMaxAttempts: 1}, true},
		{"zero threshold", Config{FailureThreshold: 0, Cooldown: time.Second, HalfOpenMaxAttempts: 1}, false},
		{"negative cooldown", Config{FailureThreshold: 1, Cooldown: -1, HalfOpenMaxAttempts: 1}, false},
		{"zero half-open attempts", Config{FailureThreshold: 1, Cooldown: time.Second, HalfOpenMaxAttempts: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err == nil) != tt.ok {
				t.Errorf("New(%+v) error = %v, want ok=%v", tt.cfg, err, tt.ok)
			}
		})
	}
}

func TestEmptyDomainRejected(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	if _, err := b.CanRequest("   "); err != ErrEmptyDomain {
		t.Errorf("CanRequest(blank) error = %v, want ErrEmptyDomain", err)
	}
	if err := b.RecordFailure(""); err != ErrEmptyDomain {
		t.Errorf("RecordFailure(empty) error = %v, want ErrEmptyDomain", err)
	}
}

func TestDomainNormalization(t *testing.T) {
	b, _ := newTestBreaker(t, Config{FailureThreshold: 2, Cooldown: time.Minute, HalfOpenMaxAttempts: 1})

	failN(t, b, "Example.COM", 1)
	failN(t, b, "  example.com ", 1)

	if st := mustState(t, b, "example.com"); st != StateOpen {
		t.Errorf("mixed-case and padded keys should hit the same circuit, state = %q", st)
	}
}

func TestThresholdOpensCircuit(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 4)
	if st := mustState(t, b, "example.com"); st != StateClosed {
		t.Fatalf("state after 4 failures = %q, want closed", st)
	}

	failN(t, b, "example.com", 1)
	if st := mustState(t, b, "example.com"); st != StateOpen {
		t.Fatalf("state after 5 failures = %q, want open", st)
	}
	if mustCanRequest(t, b, "example.com") {
		t.Error("open circuit should refuse requests")
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 4)
	if err := b.RecordSuccess("example.com"); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	failN(t, b, "example.com", 4)

	if st := mustState(t, b, "example.com"); st != StateClosed {
		t.Errorf("non-consecutive failures should not open the circuit, state = %q", st)
	}
}

func TestNoResetOnSuccessCountsCumulatively(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResetOnSuccess = false
	b, _ := newTestBreaker(t, cfg)

	failN(t, b, "example.com", 3)
	_ = b.RecordSuccess("example.com")
	failN(t, b, "example.com", 2)

	if st := mustState(t, b, "example.com"); st != StateOpen {
		t.Errorf("cumulative failures should open the circuit, state = %q", st)
	}
}

func TestCooldownMovesToHalfOpen(t *testing.T) {
	b, advance := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 5)
	if mustCanRequest(t, b, "example.com") {
		t.Fatal("open circuit should refuse requests")
	}

	advance(59 * time.Second)
	if mustCanRequest(t, b, "example.com") {
		t.Fatal("circuit should stay open before cooldown elapses")
	}

	advance(1 * time.Second)
	if !mustCanRequest(t, b, "example.com") {
		t.Fatal("circuit should grant a probe after cooldown")
	}
	if st := mustState(t, b, "example.com"); st != StateHalfOpen {
		t.Errorf("state = %q, want half_open", st)
	}
}

func TestHalfOpenProbeBudget(t *testing.T) {
	b, advance := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 5)
	advance(60 * time.Second)

	// Two probes pass (HalfOpenMaxAttempts), the third is refused.
	if !mustCanRequest(t, b, "example.com") {
		t.Fatal("first probe should pass")
	}
	if !mustCanRequest(t, b, "example.com") {
		t.Fatal("second probe should pass")
	}
	if mustCanRequest(t, b, "example.com") {
		t.Error("third probe should be refused")
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b, advance := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 5)
	advance(60 * time.Second)
	mustCanRequest(t, b, "example.com")

	if err := b.RecordSuccess("example.com"); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	if st := mustState(t, b, "example.com"); st != StateClosed {
		t.Errorf("state = %q, want closed", st)
	}

	// Failure history is gone: a single new failure must not reopen.
	failN(t, b, "example.com", 1)
	if st := mustState(t, b, "example.com"); st != StateClosed {
		t.Errorf("state after one failure = %q, want closed", st)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, advance := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 5)
	advance(60 * time.Second)
	mustCanRequest(t, b, "example.com")

	failN(t, b, "example.com", 1)
	if st := mustState(t, b, "example.com"); st != StateOpen {
		t.Fatalf("state = %q, want open", st)
	}

	// The cooldown restarts from the reopening failure.
	advance(59 * time.Second)
	if mustCanRequest(t, b, "example.com") {
		t.Error("circuit should stay open until the new cooldown elapses")
	}
	advance(1 * time.Second)
	if !mustCanRequest(t, b, "example.com") {
		t.Error("circuit should probe again after the restarted cooldown")
	}
}

func TestZeroCooldownProbesImmediately(t *testing.T) {
	b, _ := newTestBreaker(t, Config{
		FailureThreshold:    1,
		Cooldown:            0,
		HalfOpenMaxAttempts: 1,
		ResetOnSuccess:      true,
	})

	failN(t, b, "example.com", 1)
	// No time passes, yet the next call may probe.
	if !mustCanRequest(t, b, "example.com") {
		t.Error("zero cooldown should allow an immediate probe")
	}
	if st := mustState(t, b, "example.com"); st != StateHalfOpen {
		t.Errorf("state = %q, want half_open", st)
	}
}

func TestCooldownRemaining(t *testing.T) {
	b, advance := newTestBreaker(t, DefaultConfig())

	if rem, _ := b.CooldownRemaining("example.com"); rem != 0 {
		t.Errorf("closed circuit remaining = %v, want 0", rem)
	}

	failN(t, b, "example.com", 5)
	if rem, _ := b.CooldownRemaining("example.com"); rem != 60*time.Second {
		t.Errorf("remaining = %v, want 60s", rem)
	}

	advance(45 * time.Second)
	if rem, _ := b.CooldownRemaining("example.com"); rem != 15*time.Second {
		t.Errorf("remaining = %v, want 15s", rem)
	}
}

func TestResetClearsDomain(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	failN(t, b, "example.com", 5)
	if err := b.Reset("example.com"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	if !mustCanRequest(t, b, "example.com") {
		t.Error("reset domain should behave as never seen")
	}
	if st := mustState(t, b, "example.com"); st != StateClosed {
		t.Errorf("state = %q, want closed", st)
	}
}

func TestResetAll(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	failN(t, b, "a.com", 5)
	failN(t, b, "b.com", 5)
	b.ResetAll()

	if !mustCanRequest(t, b, "a.com") || !mustCanRequest(t, b, "b.com") {
		t.Error("all domains should be cleared")
	}
}

func TestDomainsAreIndependent(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	failN(t, b, "bad.com", 5)
	if mustCanRequest(t, b, "bad.com") {
		t.Error("bad.com should be open")
	}
	if !mustCanRequest(t, b, "good.com") {
		t.Error("good.com should be unaffected")
	}
}

func TestSnapshot(t *testing.T) {
	b, _ := newTestBreaker(t, DefaultConfig())

	failN(t, b, "bad.com", 5)
	failN(t, b, "meh.com", 2)

	statuses := b.Snapshot()
	if len(statuses) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(statuses))
	}

	byDomain := make(map[string]DomainStatus, len(statuses))
	for _, st := range statuses {
		byDomain[st.Domain] = st
	}

	bad := byDomain["bad.com"]
	if bad.State != StateOpen || bad.FailureCount != 5 {
		t.Errorf("bad.com = %+v, want open with 5 failures", bad)
	}
	if bad.CooldownRemainingMs != 60000 {
		t.Errorf("bad.com cooldown remaining = %d ms, want 60000", bad.CooldownRemainingMs)
	}

	meh := byDomain["meh.com"]
	if meh.State != StateClosed || meh.FailureCount != 2 {
		t.Errorf("meh.com = %+v, want closed with 2 failures", meh)
	}
}
