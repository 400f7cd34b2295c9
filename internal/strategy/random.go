package strategy

import (
	"context"

	"github.com/angeloszaimis/link-rotator/internal/parser"
)

type uniformStrategy struct {
	rng Rand
}

func (u *uniformStrategy) Select(_ context.Context, candidates parser.CandidateList) (int, error) {
	if len(candidates) == 0 {
		return 0, ErrNoCandidates
	}

	return u.rng.IntN(len(candidates)), nil
}

func (u *uniformStrategy) Name() string {
	return NameUniform
}

func NewUniformStrategy(rng Rand) Strategy {
	if rng == nil {
		rng = DefaultRand
	}

	return &uniformStrategy{rng: rng}
}
