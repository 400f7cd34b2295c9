package linkcache_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/link-rotator/internal/linkcache"
	"github.com/angeloszaimis/link-rotator/internal/parser"
)

var _ = Describe("Cache", func() {
	const (
		origin = "https://raw.example.test/links.txt"
		ttl    = 60 * time.Second
	)

	var (
		ctx     context.Context
		clock   *fakeClock
		fetcher *countingFetcher
		store   *linkcache.MemoryStore
		results []linkcache.RefreshResult
		cache   *linkcache.Cache
	)

	newCache := func(s linkcache.Store) *linkcache.Cache {
		c, err := linkcache.New(linkcache.Options{
			Origin:    origin,
			Dialect:   parser.DialectPlain,
			TTL:       ttl,
			Fetcher:   fetcher,
			Store:     s,
			Now:       clock.Now,
			OnRefresh: func(r linkcache.RefreshResult) { results = append(results, r) },
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = newFakeClock()
		fetcher = newCountingFetcher("https://a.test\nhttps://b.test\n")
		store = linkcache.NewMemoryStore()
		results = nil
		cache = newCache(store)
	})

	AfterEach(func() {
		Expect(cache.Close()).To(Succeed())
	})

	Describe("New", func() {
		It("should require an origin, a fetcher and a positive ttl", func() {
			_, err := linkcache.New(linkcache.Options{Fetcher: fetcher, TTL: ttl})
			Expect(err).To(HaveOccurred())
			_, err = linkcache.New(linkcache.Options{Origin: origin, TTL: ttl})
			Expect(err).To(HaveOccurred())
			_, err = linkcache.New(linkcache.Options{Origin: origin, Fetcher: fetcher})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("should fetch and parse on first use", func() {
			list, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(Equal(parser.CandidateList{"https://a.test", "https://b.test"}))
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should not refetch within the ttl", func() {
			_, _ = cache.Get(ctx)
			clock.Advance(ttl - time.Second)
			_, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should refetch exactly once after the ttl", func() {
			_, _ = cache.Get(ctx)
			clock.Advance(ttl)
			fetcher.set(http.StatusOK, "https://c.test\n", nil)

			list, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(Equal(parser.CandidateList{"https://c.test"}))

			_, _ = cache.Get(ctx)
			Expect(fetcher.Calls()).To(Equal(2))
		})

		It("should fail with ErrSourceUnavailable on a non-2xx answer", func() {
			fetcher.set(http.StatusNotFound, "", nil)
			_, err := cache.Get(ctx)
			Expect(err).To(MatchError(linkcache.ErrSourceUnavailable))
		})

		It("should fail with ErrSourceUnavailable on a transport error", func() {
			fetcher.set(0, "", errors.New("dial tcp: connection refused"))
			_, err := cache.Get(ctx)
			Expect(err).To(MatchError(linkcache.ErrSourceUnavailable))
			Expect(results).To(HaveLen(1))
			Expect(results[0].Err).To(MatchError(linkcache.ErrSourceUnavailable))
		})

		It("should not serve an expired entry when the refetch fails", func() {
			_, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(ttl + time.Second)
			fetcher.set(http.StatusInternalServerError, "", nil)

			list, err := cache.Get(ctx)
			Expect(err).To(MatchError(linkcache.ErrSourceUnavailable))
			Expect(list).To(BeNil())
		})

		It("should cache an empty payload for the ttl", func() {
			fetcher.set(http.StatusOK, "\n\n  \n", nil)
			_, err := cache.Get(ctx)
			Expect(err).To(MatchError(parser.ErrEmptySource))
			_, err = cache.Get(ctx)
			Expect(err).To(MatchError(parser.ErrEmptySource))
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should collapse concurrent misses into one fetch", func() {
			fetcher.gate = make(chan struct{})

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					list, err := cache.Get(ctx)
					Expect(err).NotTo(HaveOccurred())
					Expect(list).To(HaveLen(2))
				}()
			}

			Eventually(fetcher.Calls).Should(Equal(1))
			close(fetcher.gate)
			wg.Wait()

			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should keep a shared fetch alive when the first caller goes away", func() {
			fetcher.gate = make(chan struct{})
			leaderCtx, cancelLeader := context.WithCancel(ctx)

			leaderErr := make(chan error, 1)
			go func() {
				_, err := cache.Get(leaderCtx)
				leaderErr <- err
			}()
			Eventually(fetcher.Calls).Should(Equal(1))

			type outcome struct {
				list parser.CandidateList
				err  error
			}
			waiter := make(chan outcome, 1)
			go func() {
				list, err := cache.Get(ctx)
				waiter <- outcome{list, err}
			}()

			cancelLeader()
			var err error
			Eventually(leaderErr).Should(Receive(&err))
			Expect(err).To(MatchError(linkcache.ErrSourceUnavailable))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())

			close(fetcher.gate)
			var got outcome
			Eventually(waiter).Should(Receive(&got))
			Expect(got.err).NotTo(HaveOccurred())
			Expect(got.list).To(HaveLen(2))
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should give up a shared fetch after the refresh timeout", func() {
			fetcher.gate = make(chan struct{})
			defer close(fetcher.gate)

			c, err := linkcache.New(linkcache.Options{
				Origin:         origin,
				TTL:            ttl,
				Fetcher:        fetcher,
				RefreshTimeout: 20 * time.Millisecond,
				Now:            clock.Now,
			})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			_, err = c.Get(ctx)
			Expect(err).To(MatchError(linkcache.ErrSourceUnavailable))
			Expect(err.Error()).To(ContainSubstring("deadline exceeded"))
		})

		It("should ignore a stored entry past its own ttl", func() {
			Expect(store.Save(ctx, &linkcache.Entry{
				Origin:    origin,
				Payload:   []byte("https://stored.test\n"),
				FetchedAt: clock.Now().Add(-30 * time.Second),
				TTL:       10 * time.Second,
			})).To(Succeed())

			list, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should store the entry in the background", func() {
			_, _ = cache.Get(ctx)
			cache.Flush()

			entry, err := store.Load(ctx, origin)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).NotTo(BeNil())
			Expect(string(entry.Payload)).To(Equal("https://a.test\nhttps://b.test\n"))
			Expect(entry.TTL).To(Equal(ttl))
			Expect(entry.FetchedAt).To(Equal(clock.Now()))
		})

		It("should not fail when the store fails", func() {
			failing := &failingStore{}
			c := newCache(failing)
			defer c.Close()

			list, err := c.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			c.Flush()
			Expect(failing.saves.Load()).To(Equal(int32(1)))
		})

		It("should serve a fresh entry found in the store without fetching", func() {
			Expect(store.Save(ctx, &linkcache.Entry{
				Origin:    origin,
				Payload:   []byte("https://stored.test\n"),
				FetchedAt: clock.Now().Add(-10 * time.Second),
				TTL:       ttl,
			})).To(Succeed())

			list, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(Equal(parser.CandidateList{"https://stored.test"}))
			Expect(fetcher.Calls()).To(BeZero())
			Expect(results).To(HaveLen(1))
			Expect(results[0].FromStore).To(BeTrue())

			clock.Advance(50 * time.Second)
			list, _ = cache.Get(ctx)
			Expect(list).To(Equal(parser.CandidateList{"https://a.test", "https://b.test"}))
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("should ignore an expired entry found in the store", func() {
			Expect(store.Save(ctx, &linkcache.Entry{
				Origin:    origin,
				Payload:   []byte("https://stored.test\n"),
				FetchedAt: clock.Now().Add(-ttl),
				TTL:       ttl,
			})).To(Succeed())

			list, err := cache.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(fetcher.Calls()).To(Equal(1))
		})
	})

	Describe("Refresh", func() {
		It("should fetch even when the entry is fresh", func() {
			_, _ = cache.Get(ctx)
			fetcher.set(http.StatusOK, "https://new.test\n", nil)

			Expect(cache.Refresh(ctx)).To(Succeed())
			Expect(fetcher.Calls()).To(Equal(2))

			list, _ := cache.Get(ctx)
			Expect(list).To(Equal(parser.CandidateList{"https://new.test"}))
		})

		It("should report parse failures", func() {
			fetcher.set(http.StatusOK, "   \n", nil)
			Expect(cache.Refresh(ctx)).To(MatchError(parser.ErrEmptySource))
		})
	})

	Describe("Info", func() {
		It("should be empty before the first fetch", func() {
			info, ok := cache.Info()
			Expect(ok).To(BeFalse())
			Expect(info.Origin).To(Equal(origin))
		})

		It("should describe the held entry", func() {
			_, _ = cache.Get(ctx)
			info, ok := cache.Info()
			Expect(ok).To(BeTrue())
			Expect(info.Candidates).To(Equal(2))
			Expect(info.Fresh).To(BeTrue())

			clock.Advance(ttl)
			info, _ = cache.Info()
			Expect(info.Fresh).To(BeFalse())
		})
	})
})
