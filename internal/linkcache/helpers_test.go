package linkcache_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/link-rotator/internal/linkcache"
	"github.com/angeloszaimis/link-rotator/internal/source"
)

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type countingFetcher struct {
	calls  atomic.Int32
	mutex  sync.Mutex
	status int
	body   string
	err    error
	gate   chan struct{}
}

func newCountingFetcher(body string) *countingFetcher {
	return &countingFetcher{status: http.StatusOK, body: body}
}

func (f *countingFetcher) Fetch(ctx context.Context, _ string) (*source.Response, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &source.Response{Status: f.status, Body: []byte(f.body), Header: http.Header{}}, nil
}

func (f *countingFetcher) set(status int, body string, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.status, f.body, f.err = status, body, err
}

func (f *countingFetcher) Calls() int {
	return int(f.calls.Load())
}

type failingStore struct {
	saves atomic.Int32
}

func (s *failingStore) Load(context.Context, string) (*linkcache.Entry, error) {
	return nil, errors.New("store down")
}

func (s *failingStore) Save(context.Context, *linkcache.Entry) error {
	s.saves.Add(1)
	return errors.New("store down")
}

func (s *failingStore) Close() error { return nil }
