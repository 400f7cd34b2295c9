package rotator_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/link-rotator/internal/destination"
	"github.com/angeloszaimis/link-rotator/internal/linkcache"
	"github.com/angeloszaimis/link-rotator/internal/parser"
	"github.com/angeloszaimis/link-rotator/internal/rotator"
	"github.com/angeloszaimis/link-rotator/internal/source"
	"github.com/angeloszaimis/link-rotator/internal/strategy"
	"github.com/angeloszaimis/link-rotator/internal/tagger"
)

const fallbackURL = "https://fallback.test/home"

type staticSource struct {
	list parser.CandidateList
	err  error
}

func (s staticSource) Get(context.Context) (parser.CandidateList, error) {
	return s.list, s.err
}

type brokenStrategy struct {
	index int
	err   error
}

func (b brokenStrategy) Select(context.Context, parser.CandidateList) (int, error) {
	return b.index, b.err
}

func (brokenStrategy) Name() string { return "broken" }

type bodyFetcher struct {
	status int
	body   string
	err    error
}

func (f bodyFetcher) Fetch(context.Context, string) (*source.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &source.Response{Status: f.status, Body: []byte(f.body)}, nil
}

func mustFallback() *destination.Fallback {
	fb, err := destination.NewFallback(fallbackURL)
	Expect(err).NotTo(HaveOccurred())
	return fb
}

func newEngine(src rotator.ListSource, strat strategy.Strategy, tg *tagger.Tagger) *rotator.Engine {
	engine, err := rotator.New(rotator.Options{
		Source:   src,
		Strategy: strat,
		Fallback: mustFallback(),
		Tagger:   tg,
	})
	Expect(err).NotTo(HaveOccurred())
	return engine
}

func cacheOver(f source.Fetcher, dialect parser.Dialect) *linkcache.Cache {
	cache, err := linkcache.New(linkcache.Options{
		Origin:  "https://raw.example.test/links",
		Dialect: dialect,
		TTL:     time.Minute,
		Fetcher: f,
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(cache.Close)
	return cache
}

func expectRedirectable(res rotator.Resolution) {
	Expect(res.Destination.IsZero()).To(BeFalse())
	u, err := url.Parse(res.Destination.String())
	Expect(err).NotTo(HaveOccurred())
	Expect(u.Scheme).To(BeElementOf("http", "https"))
	Expect(u.Host).NotTo(BeEmpty())
}

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should require a source, a strategy and a fallback", func() {
			_, err := rotator.New(rotator.Options{Strategy: strategy.NewUniformStrategy(nil), Fallback: mustFallback()})
			Expect(err).To(HaveOccurred())
			_, err = rotator.New(rotator.Options{Source: staticSource{}, Fallback: mustFallback()})
			Expect(err).To(HaveOccurred())
			_, err = rotator.New(rotator.Options{Source: staticSource{}, Strategy: strategy.NewUniformStrategy(nil)})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Resolve", func() {
		It("should rotate through the list in order", func() {
			engine := newEngine(staticSource{list: parser.CandidateList{
				"https://a.test", "https://b.test", "https://c.test",
			}}, strategy.NewSequentialStrategy(nil), nil)

			var got []string
			for i := 0; i < 4; i++ {
				res := engine.Resolve(ctx, "")
				Expect(res.FellBack()).To(BeFalse())
				got = append(got, res.Destination.String())
			}

			Expect(got).To(Equal([]string{"https://a.test", "https://b.test", "https://c.test", "https://a.test"}))
		})

		It("should return valid candidates unchanged", func() {
			engine := newEngine(staticSource{list: parser.CandidateList{"https://a.test/p?q=1"}},
				strategy.NewSequentialStrategy(nil), nil)

			res := engine.Resolve(ctx, "")
			Expect(res.Destination.String()).To(Equal("https://a.test/p?q=1"))
			Expect(res.Candidate).To(Equal("https://a.test/p?q=1"))
			Expect(res.Index).To(Equal(0))
			Expect(res.Err).NotTo(HaveOccurred())
		})

		It("should fall back on an invalid candidate and keep what was selected", func() {
			engine := newEngine(staticSource{list: parser.CandidateList{"javascript:alert(1)"}},
				strategy.NewSequentialStrategy(nil), nil)

			res := engine.Resolve(ctx, "")
			Expect(res.FellBack()).To(BeTrue())
			Expect(res.Destination.String()).To(Equal(fallbackURL))
			Expect(res.Candidate).To(Equal("javascript:alert(1)"))
			Expect(res.Err).To(MatchError(destination.ErrInvalid))
		})

		It("should fall back when the strategy fails", func() {
			engine := newEngine(staticSource{list: parser.CandidateList{"https://a.test"}},
				brokenStrategy{err: errors.New("counter unavailable")}, nil)

			res := engine.Resolve(ctx, "")
			Expect(res.Destination.String()).To(Equal(fallbackURL))
			Expect(rotator.Reason(res.Err)).To(Equal(rotator.ReasonSelectionFailed))
		})

		It("should fall back when the strategy returns an index out of range", func() {
			engine := newEngine(staticSource{list: parser.CandidateList{"https://a.test"}},
				brokenStrategy{index: 5}, nil)

			res := engine.Resolve(ctx, "")
			Expect(res.Destination.String()).To(Equal(fallbackURL))
			Expect(res.Err).To(MatchError(strategy.ErrNoCandidates))
		})

		It("should fall back to the configured url on a whitespace-only source", func() {
			cache := cacheOver(bodyFetcher{status: http.StatusOK, body: "\n\n  \n"}, parser.DialectPlain)
			engine := newEngine(cache, strategy.NewSequentialStrategy(nil), nil)

			res := engine.Resolve(ctx, "")
			Expect(res.Err).To(MatchError(parser.ErrEmptySource))
			Expect(res.Destination.String()).To(Equal(fallbackURL))
		})

		Context("with tagging", func() {
			var engine *rotator.Engine

			BeforeEach(func() {
				engine = newEngine(staticSource{list: parser.CandidateList{"https://shop.test/item"}},
					strategy.NewSequentialStrategy(nil), tagger.New("", nil))
			})

			It("should tag a recognised referer", func() {
				res := engine.Resolve(ctx, "https://t.co/xyz")
				Expect(res.Destination.String()).To(Equal("https://shop.test/item?sub_id=X_Traffic"))
				Expect(res.Tagged).To(BeTrue())
				Expect(engine.Tagging()).To(BeTrue())
			})

			It("should leave the destination alone for an unknown referer", func() {
				res := engine.Resolve(ctx, "https://news.example.test/")
				Expect(res.Destination.String()).To(Equal("https://shop.test/item"))
				Expect(res.Tagged).To(BeFalse())
			})

			It("should not tag the fallback", func() {
				engine = newEngine(staticSource{err: linkcache.ErrSourceUnavailable},
					strategy.NewSequentialStrategy(nil), tagger.New("", nil))

				res := engine.Resolve(ctx, "https://t.co/xyz")
				Expect(res.Destination.String()).To(Equal(fallbackURL))
			})
		})
	})

	Describe("total redirect", func() {
		type sourceCase struct {
			name  string
			fetch bodyFetcher
		}

		sources := []sourceCase{
			{"down", bodyFetcher{err: errors.New("connection refused")}},
			{"non-2xx", bodyFetcher{status: http.StatusBadGateway}},
			{"empty", bodyFetcher{status: http.StatusOK, body: ""}},
			{"whitespace", bodyFetcher{status: http.StatusOK, body: "\n \t\n"}},
			{"malformed", bodyFetcher{status: http.StatusOK, body: "not a url\nftp://x\n\x00\x01\n"}},
			{"mixed", bodyFetcher{status: http.StatusOK, body: "https://a.test\nnot a url\nhttp://b.test/x\n"}},
			{"valid", bodyFetcher{status: http.StatusOK, body: "https://a.test\nhttps://b.test\n"}},
		}

		strategies := []func() strategy.Strategy{
			func() strategy.Strategy { return strategy.NewSequentialStrategy(nil) },
			func() strategy.Strategy { return strategy.NewUniformStrategy(nil) },
			func() strategy.Strategy {
				return strategy.NewWeightedStrategy(0.5, strategy.SubstringClassifier([]string{"a.test"}), nil)
			},
		}

		for _, dialect := range []parser.Dialect{parser.DialectPlain, parser.DialectCSV, parser.DialectMarkdown} {
			for _, build := range strategies {
				name := build().Name()
				for _, sc := range sources {
					It(fmt.Sprintf("should always redirect (%s, %s, %s)", dialect, name, sc.name), func() {
						engine := newEngine(cacheOver(sc.fetch, dialect), build(), tagger.New("", nil))
						for i := 0; i < 10; i++ {
							expectRedirectable(engine.Resolve(ctx, "https://facebook.com/"))
						}
					})
				}
			}
		}
	})
})

var _ = DescribeTable("Reason",
	func(err error, expected string) {
		Expect(rotator.Reason(err)).To(Equal(expected))
	},
	Entry("nil", nil, ""),
	Entry("source unavailable", fmt.Errorf("%w: boom", linkcache.ErrSourceUnavailable), rotator.ReasonSourceUnavailable),
	Entry("empty source", parser.ErrEmptySource, rotator.ReasonEmptySource),
	Entry("invalid candidate", fmt.Errorf("%w: bad", destination.ErrInvalid), rotator.ReasonInvalidCandidate),
	Entry("anything else", errors.New("other"), rotator.ReasonSelectionFailed),
)
