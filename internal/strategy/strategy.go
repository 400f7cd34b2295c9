package strategy

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/angeloszaimis/link-rotator/internal/parser"
)

const (
	NameSequential = "sequential"
	NameUniform    = "uniform"
	NameWeighted   = "weighted"
)

var ErrNoCandidates = errors.New("no candidates to select from")

// Strategy picks the index of one candidate.
type Strategy interface {
	Select(ctx context.Context, candidates parser.CandidateList) (int, error)
	Name() string
}

// Rand is the subset of math/rand/v2 used by the random strategies.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand draws from the goroutine-safe top-level math/rand/v2 source.
var DefaultRand Rand = globalRand{}
