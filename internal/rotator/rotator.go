package rotator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/angeloszaimis/link-rotator/internal/destination"
	"github.com/angeloszaimis/link-rotator/internal/linkcache"
	"github.com/angeloszaimis/link-rotator/internal/parser"
	"github.com/angeloszaimis/link-rotator/internal/strategy"
	"github.com/angeloszaimis/link-rotator/internal/tagger"
)

const (
	ReasonSourceUnavailable = "source_unavailable"
	ReasonEmptySource       = "empty_source"
	ReasonInvalidCandidate  = "invalid_candidate"
	ReasonSelectionFailed   = "selection_failed"
)

// ListSource supplies the current candidate list. *linkcache.Cache satisfies it.
type ListSource interface {
	Get(ctx context.Context) (parser.CandidateList, error)
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Destination destination.Destination
	// Candidate is the raw selected value, empty when selection did not run.
	Candidate string
	// Index is the selected position in the list, -1 when selection did not run.
	Index  int
	Tagged bool
	// Err is the failure that caused the fallback, nil on success.
	Err error
}

// FellBack reports whether the fallback destination was used.
func (r Resolution) FellBack() bool {
	return r.Err != nil
}

type Engine struct {
	source   ListSource
	strategy strategy.Strategy
	fallback *destination.Fallback
	tagger   *tagger.Tagger
	logger   *slog.Logger
}

type Options struct {
	Source   ListSource
	Strategy strategy.Strategy
	Fallback *destination.Fallback
	// Tagger is optional; nil disables referer tagging.
	Tagger *tagger.Tagger
	Logger *slog.Logger
}

func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, errors.New("rotator: source is required")
	}

	if opts.Strategy == nil {
		return nil, errors.New("rotator: strategy is required")
	}

	if opts.Fallback == nil {
		return nil, errors.New("rotator: fallback is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		source:   opts.Source,
		strategy: opts.Strategy,
		fallback: opts.Fallback,
		tagger:   opts.Tagger,
		logger:   opts.Logger,
	}, nil
}

// Resolve picks the destination for one request. It never fails: any error
// from the source, the strategy or the validator yields the fallback.
func (e *Engine) Resolve(ctx context.Context, referer string) Resolution {
	list, err := e.source.Get(ctx)
	if err != nil {
		return e.fallbackFor(err, "", -1)
	}

	index, err := e.strategy.Select(ctx, list)
	if err != nil {
		return e.fallbackFor(err, "", -1)
	}

	if index < 0 || index >= len(list) {
		return e.fallbackFor(fmt.Errorf("%w: index %d out of range", strategy.ErrNoCandidates, index), "", -1)
	}

	candidate := list[index]

	dest, err := destination.Validate(candidate)
	if err != nil {
		return e.fallbackFor(err, candidate, index)
	}

	res := Resolution{Destination: dest, Candidate: candidate, Index: index}

	if e.tagger != nil {
		tagged := e.tagger.Tag(dest, referer)
		res.Tagged = tagged.String() != dest.String()
		res.Destination = tagged
	}

	return res
}

// Tagging reports whether referer tagging is active.
func (e *Engine) Tagging() bool {
	return e.tagger != nil
}

// Fallback returns the configured fallback destination.
func (e *Engine) Fallback() destination.Destination {
	return e.fallback.Resolve()
}

func (e *Engine) Strategy() strategy.Strategy {
	return e.strategy
}

func (e *Engine) fallbackFor(err error, candidate string, index int) Resolution {
	e.logger.Warn("serving fallback destination",
		slog.String("reason", Reason(err)),
		slog.String("candidate", candidate),
		slog.String("error", err.Error()))

	return Resolution{
		Destination: e.fallback.Resolve(),
		Candidate:   candidate,
		Index:       index,
		Err:         err,
	}
}

// Reason maps a pipeline error to a short label for metrics. It returns ""
// for nil.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, linkcache.ErrSourceUnavailable):
		return ReasonSourceUnavailable
	case errors.Is(err, parser.ErrEmptySource):
		return ReasonEmptySource
	case errors.Is(err, destination.ErrInvalid):
		return ReasonInvalidCandidate
	default:
		return ReasonSelectionFailed
	}
}
