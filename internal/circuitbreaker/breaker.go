package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Fetches pass through
	StateOpen                  // Fetches refused
	StateHalfOpen              // One probe in flight
)

type CircuitBreaker struct {
	mutex            sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	probing          bool
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
	onTransition     func(from, to State)
}

func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		now:              time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.now = now
	return cb
}

// OnTransition registers fn to be called after every state change. It runs
// outside the breaker lock.
func (cb *CircuitBreaker) OnTransition(fn func(from, to State)) *CircuitBreaker {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onTransition = fn
	return cb
}

func (cb *CircuitBreaker) notify(from, to State, fn func(from, to State)) {
	if fn != nil && from != to {
		fn(from, to)
	}
}

// Allow reports whether a fetch may be attempted. While half-open only the
// first caller gets through until its outcome is recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()

	if cb.failureThreshold <= 0 {
		cb.mutex.Unlock()
		return true
	}

	from, allowed := cb.state, true
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			allowed = false
			break
		}
		cb.state = StateHalfOpen
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			allowed = false
			break
		}
		cb.probing = true
	}

	to, fn := cb.state, cb.onTransition
	cb.mutex.Unlock()

	cb.notify(from, to, fn)
	return allowed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()

	from := cb.state
	cb.failures++
	cb.lastFailure = cb.now()
	cb.probing = false

	if cb.failureThreshold > 0 && (cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold) {
		cb.state = StateOpen
	}

	to, fn := cb.state, cb.onTransition
	cb.mutex.Unlock()

	cb.notify(from, to, fn)
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()

	from := cb.state
	cb.failures = 0
	cb.probing = false
	cb.state = StateClosed

	fn := cb.onTransition
	cb.mutex.Unlock()

	cb.notify(from, StateClosed, fn)
}

// Release gives up an allowed attempt without recording an outcome, freeing
// the half-open probe slot.
func (cb *CircuitBreaker) Release() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.probing = false
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}
