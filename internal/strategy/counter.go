package strategy

import (
	"context"
	"sync/atomic"
)

// Counter is the rotation state of the sequential strategy. Next returns the
// current value and advances it by one.
type Counter interface {
	Next(ctx context.Context) (uint64, error)
	Reset(ctx context.Context) error
}

// LocalCounter is an in-process counter. Increments are atomic, so every
// candidate is served exactly once per cycle within one instance.
type LocalCounter struct {
	value atomic.Uint64
}

func NewLocalCounter() *LocalCounter {
	return &LocalCounter{}
}

func (c *LocalCounter) Next(_ context.Context) (uint64, error) {
	return c.value.Add(1) - 1, nil
}

func (c *LocalCounter) Reset(_ context.Context) error {
	c.value.Store(0)
	return nil
}

// Value returns the number of selections since the last reset.
func (c *LocalCounter) Value() uint64 {
	return c.value.Load()
}
