package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "link-rotator/1.0"
	DefaultTimeout   = 5 * time.Second
	MaxBodyBytes     = 5 << 20
)

var (
	ErrRateLimited = errors.New("source fetch rate limit exceeded")
	ErrCircuitOpen = errors.New("source circuit breaker open")
)

// Response is the raw outcome of a fetch. A non-2xx Status is not an error at
// this layer; the caller decides how to treat it.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

type Fetcher interface {
	Fetch(ctx context.Context, origin string) (*Response, error)
}

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// MaxRPS limits outbound fetches per second. Zero or less disables it.
	MaxRPS float64
}

func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	var limiter *rate.Limiter
	if opts.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), max(1, int(opts.MaxRPS)))
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		limiter:   limiter,
	}
}

// Fetch performs a GET against origin. The rate limiter never waits: an
// exhausted budget fails immediately so the request can fall back.
func (f *HTTPFetcher) Fetch(ctx context.Context, origin string) (*Response, error) {
	if f.limiter != nil && !f.limiter.Allow() {
		return nil, ErrRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain, text/csv, text/markdown;q=0.9, */*;q=0.5")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read source body: %w", err)
	}

	return &Response{
		Status: res.StatusCode,
		Body:   body,
		Header: res.Header.Clone(),
	}, nil
}
