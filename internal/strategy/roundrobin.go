package strategy

import (
	"context"

	"github.com/angeloszaimis/link-rotator/internal/parser"
)

type sequentialStrategy struct {
	counter Counter
}

// Select returns counter mod len(candidates) and advances the counter.
func (s *sequentialStrategy) Select(ctx context.Context, candidates parser.CandidateList) (int, error) {
	if len(candidates) == 0 {
		return 0, ErrNoCandidates
	}

	n, err := s.counter.Next(ctx)
	if err != nil {
		return 0, err
	}

	return int(n % uint64(len(candidates))), nil
}

func (s *sequentialStrategy) Name() string {
	return NameSequential
}

func NewSequentialStrategy(counter Counter) Strategy {
	if counter == nil {
		counter = NewLocalCounter()
	}

	return &sequentialStrategy{counter: counter}
}
