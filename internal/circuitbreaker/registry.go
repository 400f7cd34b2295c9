package circuitbreaker

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// TransitionFunc observes a state change of the breaker guarding origin.
type TransitionFunc func(origin string, from, to State)

type RegistryOption func(*Registry)

// WithRegistryClock gives every breaker created by the registry the same
// time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithTransitionHook attaches fn to every breaker created by the registry.
func WithTransitionHook(fn TransitionFunc) RegistryOption {
	return func(r *Registry) { r.onTransition = fn }
}

// OriginStatus is a point-in-time view of one origin's breaker.
type OriginStatus struct {
	Origin   string `json:"origin"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// Registry keeps one breaker per source origin, created lazily.
type Registry struct {
	mutex        sync.RWMutex
	breakers     map[string]*CircuitBreaker
	threshold    int
	timeout      time.Duration
	now          func() time.Time
	onTransition TransitionFunc
}

func NewRegistry(threshold int, timeout time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) GetBreaker(origin string) *CircuitBreaker {
	r.mutex.RLock()
	cb, ok := r.breakers[origin]
	r.mutex.RUnlock()
	if ok {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cb, ok = r.breakers[origin]; ok {
		return cb
	}

	cb = NewCircuitBreaker(r.threshold, r.timeout).WithClock(r.now)
	if hook := r.onTransition; hook != nil {
		cb.OnTransition(func(from, to State) { hook(origin, from, to) })
	}
	r.breakers[origin] = cb
	return cb
}

// Forget drops the breaker for origin so the next fetch starts closed.
func (r *Registry) Forget(origin string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.breakers, origin)
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// Status lists every known origin, sorted by origin.
func (r *Registry) Status() []OriginStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]OriginStatus, 0, len(r.breakers))
	for origin, cb := range r.breakers {
		out = append(out, OriginStatus{
			Origin:   origin,
			State:    cb.State().String(),
			Failures: cb.Failures(),
		})
	}

	slices.SortFunc(out, func(a, b OriginStatus) int {
		return strings.Compare(a.Origin, b.Origin)
	})
	return out
}

// Open reports whether any origin is currently refusing fetches.
func (r *Registry) Open() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, cb := range r.breakers {
		if cb.State() == StateOpen {
			return true
		}
	}
	return false
}
