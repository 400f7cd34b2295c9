// Package circuitbreaker protects the link source from being hammered while
// it is failing.
//
// A breaker has three states:
//
//   - CLOSED: fetches pass through
//   - OPEN: the origin keeps failing, fetches are refused until the reset timeout
//   - HALF-OPEN: a single probe fetch is let through to test recovery
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second)
//	cb := registry.GetBreaker("https://raw.githubusercontent.com/acme/links/main/links.txt")
//	if cb.Allow() {
//	    // Fetch the list...
//	    if err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
//
// A threshold of zero or less disables the breaker: Allow always succeeds.
package circuitbreaker
