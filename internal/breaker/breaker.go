// Package breaker implements the per-adapter circuit breaker that guards
// dispatch. Each registered adapter owns one Breaker; trips on one never
// affect another.
package breaker

import (
	"sync"
	"time"
)

// State identifies the breaker position.
type State string

const (
	// StateClosed admits every call.
	StateClosed State = "closed"
	// StateOpen rejects calls until the cooldown deadline passes.
	StateOpen State = "open"
	// StateHalfOpen admits a single trial call whose outcome decides
	// whether the circuit closes again or reopens.
	StateHalfOpen State = "half-open"
)

// Status is a point-in-time snapshot of a breaker, exposed through the
// engine's adapter status listing.
type Status struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastFailure         time.Time `json:"lastFailure"`
	CooldownUntil       time.Time `json:"cooldownUntil"`
}

// Breaker is a three-state circuit breaker: closed until threshold
// consecutive failures, open for a cooldown period, then half-open for one
// trial call. Safe for concurrent use; each method holds the breaker's own
// mutex only, so breakers for different adapters never contend.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state     State
	failures  int
	lastFail  time.Time
	openUntil time.Time
	probing   bool
}

// New returns a closed breaker that opens after threshold consecutive
// failures and stays open for cooldown. A threshold below 1 is treated
// as 1.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     StateClosed,
	}
}

// Allow reports whether a call may be dispatched now. When an open
// circuit's cooldown has elapsed, Allow transitions to half-open and admits
// exactly one trial call; concurrent callers are rejected until that trial
// settles through RecordSuccess, RecordFailure, or RecordCanceled.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the circuit and resets the consecutive-failure
// count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.openUntil = time.Time{}
}

// RecordFailure counts a consecutive failure. The circuit opens when the
// count reaches the threshold, or immediately if a half-open trial fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failures++
	b.lastFail = now
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
		b.openUntil = now.Add(b.cooldown)
		b.probing = false
	}
}

// RecordCanceled releases the trial slot without judging the adapter. Used
// when a dispatched call is abandoned for reasons unrelated to adapter
// health, such as the caller's context ending. The failure count and state
// are left as they were, except that a pending half-open trial slot is
// reopened so the next caller can probe.
func (b *Breaker) RecordCanceled() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
}

// Status returns a snapshot of the breaker.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailure:         b.lastFail,
		CooldownUntil:       b.openUntil,
	}
}
