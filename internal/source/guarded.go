package source

import (
	"context"
	"errors"

	"github.com/angeloszaimis/link-rotator/internal/circuitbreaker"
)

// GuardedFetcher refuses fetches while the origin's breaker is open. Transport
// errors and non-2xx answers count as failures; a cancelled caller does not.
type GuardedFetcher struct {
	next     Fetcher
	breakers *circuitbreaker.Registry
}

func NewGuardedFetcher(next Fetcher, breakers *circuitbreaker.Registry) *GuardedFetcher {
	return &GuardedFetcher{next: next, breakers: breakers}
}

func (g *GuardedFetcher) Fetch(ctx context.Context, origin string) (*Response, error) {
	cb := g.breakers.GetBreaker(origin)
	if !cb.Allow() {
		return nil, ErrCircuitOpen
	}

	res, err := g.next.Fetch(ctx, origin)
	if errors.Is(err, context.Canceled) {
		cb.Release()
		return res, err
	}

	if err != nil || !res.OK() {
		cb.RecordFailure()
		return res, err
	}

	cb.RecordSuccess()
	return res, nil
}
