package workload

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ColorSampler draws job colors from a fixed categorical distribution.
type ColorSampler struct {
	colors []string
	dist   distuv.Categorical
}

// NewColorSampler builds a sampler over colors with relative weights.
// Weights need not sum to one.
func NewColorSampler(colors []string, weights []float64, src rand.Source) (*ColorSampler, error) {
	if len(colors) == 0 || len(colors) != len(weights) {
		return nil, fmt.Errorf("color sampler: %d colors with %d weights", len(colors), len(weights))
	}
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("color sampler: weight of %q must be positive, got %v", colors[i], w)
		}
	}
	return &ColorSampler{
		colors: append([]string(nil), colors...),
		dist:   distuv.NewCategorical(weights, src),
	}, nil
}

// Next returns one color.
func (s *ColorSampler) Next() string {
	return s.colors[int(s.dist.Rand())]
}

// Prob returns the probability of color, or 0 if it is not in the distribution.
func (s *ColorSampler) Prob(color string) float64 {
	for i, c := range s.colors {
		if c == color {
			return s.dist.Prob(float64(i))
		}
	}
	return 0
}
