// Package breaker gates scrape attempts per target domain. Each domain moves
// through a three-state machine (closed, open, half_open) driven by
// recorded successes and failures. Transitions that depend only on elapsed
// time are materialized lazily on the next call touching the domain; there is
// no background timer.
package breaker

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// State of a domain's circuit.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrEmptyDomain is returned when a domain key normalizes to the empty string.
var ErrEmptyDomain = errors.New("breaker: empty domain")

// Config controls the per-domain circuit breakers.
type Config struct {
	// FailureThreshold is the consecutive failure count that opens a closed
	// circuit. Must be > 0.
	FailureThreshold int

	// Cooldown is how long an open circuit stays open before the next
	// synchronizing call moves it to half_open. Zero means the very next
	// call probes. Must be ≥ 0.
	Cooldown time.Duration

	// HalfOpenMaxAttempts is how many probe requests a half-open circuit
	// grants before refusing further passes. Must be > 0.
	HalfOpenMaxAttempts int

	// ResetOnSuccess zeroes the failure count on every success while closed,
	// so only consecutive failures can open the circuit.
	ResetOnSuccess bool
}

// DefaultConfig returns the breaker defaults used by the service.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		Cooldown:            60 * time.Second,
		HalfOpenMaxAttempts: 2,
		ResetOnSuccess:      true,
	}
}

// Validate rejects configurations the state machine cannot run with.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("breaker: failure threshold must be > 0, got %d", c.FailureThreshold)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("breaker: cooldown must be ≥ 0, got %v", c.Cooldown)
	}
	if c.HalfOpenMaxAttempts <= 0 {
		return fmt.Errorf("breaker: half-open max attempts must be > 0, got %d", c.HalfOpenMaxAttempts)
	}
	return nil
}

// domainState is the per-domain record. openedAt is the zero time unless the
// circuit is open.
type domainState struct {
	state            State
	failureCount     int
	openedAt         time.Time
	halfOpenAttempts int
}

// DomainBreaker tracks failure history per normalized domain and decides
// whether the next request to that domain may proceed. Safe for concurrent
// use; state is created lazily on first access and lives until reset.
type DomainBreaker struct {
	cfg Config

	mu      sync.Mutex
	domains map[string]*domainState

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a DomainBreaker. Invalid configuration is a construction
// error, never retried.
func New(cfg Config) (*DomainBreaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DomainBreaker{
		cfg:     cfg,
		domains: make(map[string]*domainState),
		nowFunc: time.Now,
	}, nil
}

// normalizeDomain trims and lowercases the key. An empty result is rejected.
func normalizeDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return "", ErrEmptyDomain
	}
	return d, nil
}

// getLocked returns the domain's record, creating a closed one on first
// access. Caller must hold b.mu.
func (b *DomainBreaker) getLocked(domain string) *domainState {
	st, ok := b.domains[domain]
	if !ok {
		st = &domainState{state: StateClosed}
		b.domains[domain] = st
	}
	return st
}

// syncLocked materializes time-driven transitions: an open circuit whose
// cooldown has elapsed becomes half_open. Caller must hold b.mu.
func (b *DomainBreaker) syncLocked(st *domainState) {
	if st.state == StateOpen && b.nowFunc().Sub(st.openedAt) >= b.cfg.Cooldown {
		st.state = StateHalfOpen
		st.halfOpenAttempts = 0
	}
}

// CanRequest reports whether a request to domain may proceed right now.
// A half-open circuit grants at most HalfOpenMaxAttempts passes; each grant
// consumes one.
func (b *DomainBreaker) CanRequest(domain string) (bool, error) {
	d, err := normalizeDomain(domain)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.getLocked(d)
	b.syncLocked(st)

	switch st.state {
	case StateOpen:
		return false, nil
	case StateHalfOpen:
		if st.halfOpenAttempts >= b.cfg.HalfOpenMaxAttempts {
			return false, nil
		}
		st.halfOpenAttempts++
		return true, nil
	default:
		return true, nil
	}
}

// RecordSuccess notes a successful attempt. A success while open or
// half-open fully closes the circuit — a single good probe is enough.
func (b *DomainBreaker) RecordSuccess(domain string) error {
	d, err := normalizeDomain(domain)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.getLocked(d)
	b.syncLocked(st)

	switch st.state {
	case StateHalfOpen, StateOpen:
		st.state = StateClosed
		st.failureCount = 0
		st.openedAt = time.Time{}
		st.halfOpenAttempts = 0
	default:
		if b.cfg.ResetOnSuccess {
			st.failureCount = 0
		}
	}
	return nil
}

// RecordFailure notes a failed attempt. A failure while half-open re-opens
// immediately; a failure while open restarts the cooldown window; reaching
// the threshold while closed opens the circuit.
func (b *DomainBreaker) RecordFailure(domain string) error {
	d, err := normalizeDomain(domain)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.getLocked(d)
	b.syncLocked(st)

	st.failureCount++
	switch st.state {
	case StateHalfOpen:
		st.state = StateOpen
		st.openedAt = b.nowFunc()
		st.halfOpenAttempts = 0
	case StateOpen:
		st.openedAt = b.nowFunc()
	default:
		if st.failureCount >= b.cfg.FailureThreshold {
			st.state = StateOpen
			st.openedAt = b.nowFunc()
		}
	}
	return nil
}

// GetState returns the domain's current state after synchronization.
func (b *DomainBreaker) GetState(domain string) (State, error) {
	d, err := normalizeDomain(domain)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.getLocked(d)
	b.syncLocked(st)
	return st.state, nil
}

// CooldownRemaining returns how long until an open domain may probe again,
// or zero when the domain is not open.
func (b *DomainBreaker) CooldownRemaining(domain string) (time.Duration, error) {
	d, err := normalizeDomain(domain)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.getLocked(d)
	b.syncLocked(st)

	if st.state != StateOpen {
		return 0, nil
	}
	remaining := b.cfg.Cooldown - b.nowFunc().Sub(st.openedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears one domain's state, reverting it to the never-seen default.
func (b *DomainBreaker) Reset(domain string) error {
	d, err := normalizeDomain(domain)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.domains, d)
	return nil
}

// ResetAll clears every tracked domain.
func (b *DomainBreaker) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.domains = make(map[string]*domainState)
}

// DomainStatus is an observability snapshot of one domain's circuit.
type DomainStatus struct {
	Domain              string `json:"domain"`
	State               State  `json:"state"`
	FailureCount        int    `json:"failure_count"`
	CooldownRemainingMs int64  `json:"cooldown_remaining_ms"`
}

// Snapshot returns the current status of every tracked domain.
func (b *DomainBreaker) Snapshot() []DomainStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]DomainStatus, 0, len(b.domains))
	for d, st := range b.domains {
		b.syncLocked(st)
		status := DomainStatus{
			Domain:       d,
			State:        st.state,
			FailureCount: st.failureCount,
		}
		if st.state == StateOpen {
			if rem := b.cfg.Cooldown - b.nowFunc().Sub(st.openedAt); rem > 0 {
				status.CooldownRemainingMs = rem.Milliseconds()
			}
		}
		out = append(out, status)
	}
	return out
}
