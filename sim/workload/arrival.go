package workload

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ArrivalSampler generates inter-arrival times for one oven.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in microseconds.
	// Always returns a positive value (>= 1).
	SampleIAT() int64
}

// ExponentialSampler generates exponentially-distributed inter-arrival
// times, making each oven a Poisson source.
type ExponentialSampler struct {
	dist distuv.Exponential
}

// NewExponentialSampler creates a sampler with the given mean in microseconds.
func NewExponentialSampler(meanMicros float64, src rand.Source) *ExponentialSampler {
	if meanMicros < 1 {
		meanMicros = 1
	}
	return &ExponentialSampler{dist: distuv.Exponential{Rate: 1 / meanMicros, Src: src}}
}

// SampleIAT implements ArrivalSampler.
func (s *ExponentialSampler) SampleIAT() int64 {
	iat := int64(s.dist.Rand())
	if iat < 1 {
		return 1
	}
	return iat
}

// Mean returns the configured mean inter-arrival time in microseconds.
func (s *ExponentialSampler) Mean() float64 { return s.dist.Mean() }
