// Package ratelimit tracks failed login attempts per source address and
// locks an address out after too many failures.
package ratelimit

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Defaults for the login limiter.
const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 5 * time.Minute
)

// Status is the result of a rate limit check.
type Status struct {
	Allowed           bool
	RemainingAttempts int
	LockoutSeconds    int
}

type attempt struct {
	failures     int
	lastAttempt  time.Time
	lockoutUntil time.Time
}

func (a *attempt) locked() bool {
	return !a.lockoutUntil.IsZero()
}

// Limiter is an in-memory login limiter keyed by source address.
type Limiter struct {
	mu          sync.Mutex
	attempts    map[string]*attempt
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
	onLockout   func(addr string)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimits overrides the failure threshold and the lockout duration.
// Zero values keep the defaults.
func WithLimits(maxAttempts int, lockout time.Duration) Option {
	return func(l *Limiter) {
		if maxAttempts > 0 {
			l.maxAttempts = maxAttempts
		}
		if lockout > 0 {
			l.lockout = lockout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// OnLockout registers a callback invoked when an address becomes locked.
func OnLockout(fn func(addr string)) Option {
	return func(l *Limiter) { l.onLockout = fn }
}

// New returns an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		attempts:    make(map[string]*attempt),
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockoutDuration,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether addr may attempt a login. An expired lockout is
// cleared and the address starts over with the full allowance.
func (l *Limiter) Check(addr string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.attempts[addr]
	if !ok {
		return Status{Allowed: true, RemainingAttempts: l.maxAttempts}
	}

	now := l.now()
	if a.locked() {
		if now.Before(a.lockoutUntil) {
			return Status{
				Allowed:        false,
				LockoutSeconds: int(math.Ceil(a.lockoutUntil.Sub(now).Seconds())),
			}
		}
		delete(l.attempts, addr)
		return Status{Allowed: true, RemainingAttempts: l.maxAttempts}
	}

	remaining := l.maxAttempts - a.failures
	return Status{Allowed: remaining > 0, RemainingAttempts: remaining}
}

// Reserve admits one attempt from addr and counts it as a failure up front,
// so concurrent attempts cannot all pass before the first result lands. The
// reservation that reaches the threshold starts the lockout. Report success
// with Record(addr, true); a failed attempt needs no further call. The
// returned RemainingAttempts is what is left if this attempt fails.
func (l *Limiter) Reserve(addr string) Status {
	l.mu.Lock()

	now := l.now()
	a, ok := l.attempts[addr]
	switch {
	case !ok:
		a = &attempt{}
		l.attempts[addr] = a
	case a.locked() && now.Before(a.lockoutUntil):
		seconds := int(math.Ceil(a.lockoutUntil.Sub(now).Seconds()))
		l.mu.Unlock()
		return Status{Allowed: false, LockoutSeconds: seconds}
	case a.locked():
		*a = attempt{}
	}

	a.failures++
	a.lastAttempt = now
	lockedNow := false
	if a.failures >= l.maxAttempts {
		a.lockoutUntil = now.Add(l.lockout)
		lockedNow = true
	}
	status := Status{Allowed: true, RemainingAttempts: l.maxAttempts - a.failures}
	until := a.lockoutUntil
	l.mu.Unlock()

	if lockedNow {
		l.notifyLockout(addr, until)
	}
	return status
}

// Release returns a reservation whose attempt ended before the PIN was
// judged, such as on a storage error. Dropping below the threshold lifts the
// lockout again.
func (l *Limiter) Release(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.attempts[addr]
	if !ok || a.failures == 0 {
		return
	}
	if a.locked() && a.failures > l.maxAttempts {
		return
	}
	a.failures--
	a.lockoutUntil = time.Time{}
	if a.failures == 0 {
		delete(l.attempts, addr)
	}
}

// Record registers the outcome of a login attempt. Success clears the
// address; the failure that reaches the threshold starts a lockout.
func (l *Limiter) Record(addr string, success bool) {
	l.mu.Lock()

	if success {
		delete(l.attempts, addr)
		l.mu.Unlock()
		return
	}

	now := l.now()
	a, ok := l.attempts[addr]
	if !ok {
		a = &attempt{}
		l.attempts[addr] = a
	}
	a.failures++
	a.lastAttempt = now

	lockedNow := false
	if a.failures >= l.maxAttempts && !a.locked() {
		a.lockoutUntil = now.Add(l.lockout)
		lockedNow = true
	}
	until := a.lockoutUntil
	l.mu.Unlock()

	if lockedNow {
		l.notifyLockout(addr, until)
	}
}

func (l *Limiter) notifyLockout(addr string, until time.Time) {
	slog.Warn("login_lockout", "addr", addr, "until", until)
	if l.onLockout != nil {
		l.onLockout(addr)
	}
}

// Sweep removes lockouts that have expired and returns how many were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for addr, a := range l.attempts {
		if a.locked() && !now.Before(a.lockoutUntil) {
			delete(l.attempts, addr)
			removed++
		}
	}
	return removed
}

// Count returns the number of addresses currently locked out.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for _, a := range l.attempts {
		if a.locked() && now.Before(a.lockoutUntil) {
			n++
		}
	}
	return n
}
