package strategy

import (
	"context"
	"strings"

	"github.com/angeloszaimis/link-rotator/internal/parser"
)

// Classifier reports whether a candidate belongs to the primary bucket.
type Classifier func(candidate string) bool

// SubstringClassifier marks a candidate primary when it contains any of
// matches, ignoring case.
func SubstringClassifier(matches []string) Classifier {
	needles := make([]string, 0, len(matches))
	for _, m := range matches {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			needles = append(needles, m)
		}
	}

	return func(candidate string) bool {
		candidate = strings.ToLower(candidate)
		for _, n := range needles {
			if strings.Contains(candidate, n) {
				return true
			}
		}
		return false
	}
}

// weightedStrategy splits candidates into primary and other buckets on every
// call and prefers primary with probability primaryChance.
type weightedStrategy struct {
	primaryChance float64
	isPrimary     Classifier
	rng           Rand
}

func NewWeightedStrategy(primaryChance float64, isPrimary Classifier, rng Rand) Strategy {
	if rng == nil {
		rng = DefaultRand
	}

	if isPrimary == nil {
		isPrimary = func(string) bool { return false }
	}

	return &weightedStrategy{
		primaryChance: min(max(primaryChance, 0), 1),
		isPrimary:     isPrimary,
		rng:           rng,
	}
}

func (w *weightedStrategy) Select(_ context.Context, candidates parser.CandidateList) (int, error) {
	if len(candidates) == 0 {
		return 0, ErrNoCandidates
	}

	var primary, other []int
	for i, c := range candidates {
		if w.isPrimary(c) {
			primary = append(primary, i)
		} else {
			other = append(other, i)
		}
	}

	roll := w.rng.Float64()

	// Precedence: primary on a winning roll, then other, then whatever is left.
	switch {
	case roll < w.primaryChance && len(primary) > 0:
		return w.pick(primary), nil
	case len(other) > 0:
		return w.pick(other), nil
	default:
		return w.pick(primary), nil
	}
}

func (w *weightedStrategy) pick(bucket []int) int {
	return bucket[w.rng.IntN(len(bucket))]
}

func (w *weightedStrategy) Name() string {
	return NameWeighted
}
