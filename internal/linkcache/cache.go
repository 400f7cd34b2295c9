package linkcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/link-rotator/internal/parser"
	"github.com/angeloszaimis/link-rotator/internal/source"
)

// ErrSourceUnavailable is returned when no fresh payload can be obtained.
var ErrSourceUnavailable = errors.New("link source unavailable")

const (
	storeTimeout = 3 * time.Second

	// DefaultRefreshTimeout bounds one shared store load plus fetch.
	DefaultRefreshTimeout = 15 * time.Second
)

// RefreshResult describes one attempt to obtain a fresh payload.
type RefreshResult struct {
	Origin     string
	FromStore  bool
	Candidates int
	Duration   time.Duration
	Err        error
}

type Options struct {
	Origin  string
	Dialect parser.Dialect
	TTL     time.Duration
	Fetcher source.Fetcher
	Store   Store
	Logger  *slog.Logger
	// RefreshTimeout bounds a shared refresh. It is detached from the
	// requester's context so one disconnecting client cannot fail the others.
	RefreshTimeout time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
	// OnRefresh is called after every fetch or store load.
	OnRefresh func(RefreshResult)
}

// Cache serves the CandidateList of one origin with at most TTL staleness.
type Cache struct {
	origin    string
	dialect   parser.Dialect
	ttl       time.Duration
	timeout   time.Duration
	fetcher   source.Fetcher
	store     Store
	logger    *slog.Logger
	now       func() time.Time
	onRefresh func(RefreshResult)

	group   singleflight.Group
	current atomic.Pointer[snapshot]
	pending sync.WaitGroup
}

// snapshot pairs an entry with its parse outcome so each payload is parsed
// once.
type snapshot struct {
	entry *Entry
	list  parser.CandidateList
	err   error
}

// Info summarises the entry currently held in memory.
type Info struct {
	Origin     string    `json:"origin"`
	FetchedAt  time.Time `json:"fetched_at"`
	Fresh      bool      `json:"fresh"`
	Candidates int       `json:"candidates"`
}

func New(opts Options) (*Cache, error) {
	if opts.Origin == "" {
		return nil, fmt.Errorf("linkcache: origin is required")
	}

	if opts.Fetcher == nil {
		return nil, fmt.Errorf("linkcache: fetcher is required")
	}

	if opts.TTL <= 0 {
		return nil, fmt.Errorf("linkcache: ttl must be positive")
	}

	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Dialect == "" {
		opts.Dialect = parser.DialectPlain
	}

	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}

	return &Cache{
		origin:    opts.Origin,
		dialect:   opts.Dialect,
		ttl:       opts.TTL,
		timeout:   opts.RefreshTimeout,
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		logger:    opts.Logger,
		now:       opts.Now,
		onRefresh: opts.OnRefresh,
	}, nil
}

// Get returns the current CandidateList, refreshing it first when the held
// entry is older than the TTL. Parse failures of a fresh payload are returned
// as-is (parser.ErrEmptySource) without refetching.
func (c *Cache) Get(ctx context.Context) (parser.CandidateList, error) {
	if s := c.current.Load(); c.fresh(s) {
		return s.list, s.err
	}

	s, err := c.shared(ctx, func(ctx context.Context) (*snapshot, error) {
		if s := c.current.Load(); c.fresh(s) {
			return s, nil
		}

		if s := c.loadFromStore(ctx); s != nil {
			return s, nil
		}

		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	return s.list, s.err
}

// Refresh fetches the origin unconditionally and publishes the result.
func (c *Cache) Refresh(ctx context.Context) error {
	s, err := c.shared(ctx, c.refresh)
	if err != nil {
		return err
	}

	return s.err
}

// shared runs fn once per origin for all concurrent callers. fn gets a
// context that outlives any single caller; each caller stops waiting when
// its own ctx is done.
func (c *Cache) shared(ctx context.Context, fn func(context.Context) (*snapshot, error)) (*snapshot, error) {
	ch := c.group.DoChan(c.origin, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, c.origin, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*snapshot), nil
	}
}

// Info reports on the entry held in memory. ok is false before the first
// successful fetch.
func (c *Cache) Info() (info Info, ok bool) {
	s := c.current.Load()
	if s == nil {
		return Info{Origin: c.origin}, false
	}

	return Info{
		Origin:     c.origin,
		FetchedAt:  s.entry.FetchedAt,
		Fresh:      c.fresh(s),
		Candidates: len(s.list),
	}, true
}

// Close waits for background store writes and closes the store.
func (c *Cache) Close() error {
	c.pending.Wait()
	return c.store.Close()
}

// Flush waits for background store writes to complete.
func (c *Cache) Flush() {
	c.pending.Wait()
}

func (c *Cache) fresh(s *snapshot) bool {
	return s != nil && c.usable(s.entry)
}

// usable reports whether entry is within both its own TTL and the cache's.
func (c *Cache) usable(entry *Entry) bool {
	now := c.now()
	return entry.Fresh(now) && now.Sub(entry.FetchedAt) < c.ttl
}

func (c *Cache) loadFromStore(ctx context.Context) *snapshot {
	start := c.now()

	entry, err := c.store.Load(ctx, c.origin)
	if err != nil {
		c.logger.Warn("failed to load cached links",
			slog.String("origin", c.origin),
			slog.String("error", err.Error()))
		return nil
	}

	if !c.usable(entry) {
		return nil
	}

	s := c.publish(entry)
	c.report(RefreshResult{
		Origin:     c.origin,
		FromStore:  true,
		Candidates: len(s.list),
		Duration:   c.now().Sub(start),
		Err:        s.err,
	})

	return s
}

func (c *Cache) refresh(ctx context.Context) (*snapshot, error) {
	start := c.now()

	res, err := c.fetcher.Fetch(ctx, c.origin)
	if err == nil && !res.OK() {
		err = fmt.Errorf("unexpected status %d", res.Status)
	}

	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, c.origin, err)
		c.logger.Warn("failed to refresh links",
			slog.String("origin", c.origin),
			slog.String("error", err.Error()))
		c.report(RefreshResult{Origin: c.origin, Duration: c.now().Sub(start), Err: err})
		return nil, err
	}

	entry := &Entry{
		Origin:    c.origin,
		Payload:   res.Body,
		FetchedAt: c.now(),
		TTL:       c.ttl,
	}

	s := c.publish(entry)
	c.persist(entry)

	c.logger.Debug("links refreshed",
		slog.String("origin", c.origin),
		slog.Int("candidates", len(s.list)))

	c.report(RefreshResult{
		Origin:     c.origin,
		Candidates: len(s.list),
		Duration:   c.now().Sub(start),
		Err:        s.err,
	})

	return s, nil
}

func (c *Cache) publish(entry *Entry) *snapshot {
	list, err := parser.Parse(c.dialect, entry.Payload)
	s := &snapshot{entry: entry, list: list, err: err}
	c.current.Store(s)
	return s
}

// persist writes entry to the store without blocking the caller.
func (c *Cache) persist(entry *Entry) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := c.store.Save(ctx, entry); err != nil {
			c.logger.Warn("failed to store links",
				slog.String("origin", c.origin),
				slog.String("error", err.Error()))
		}
	}()
}

func (c *Cache) report(r RefreshResult) {
	if c.onRefresh != nil {
		c.onRefresh(r)
	}
}
