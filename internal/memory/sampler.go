package memory

import (
	"math/rand/v2"
	"sync"
)

// Sampler decides whether a request pays for a semantic lookup. A lookup happens only when
// the recent history is at least minHistory long and a random draw falls below rate.
type Sampler struct {
	minHistory int
	rate       float64

	mu   sync.Mutex
	rand func() float64
}

// NewSampler creates a Sampler. rate is clamped to [0,1].
func NewSampler(minHistory int, rate float64) *Sampler {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &Sampler{minHistory: minHistory, rate: rate, rand: rand.Float64}
}

// WithRand replaces the random source; used by tests.
func (s *Sampler) WithRand(fn func() float64) *Sampler {
	s.mu.Lock()
	s.rand = fn
	s.mu.Unlock()
	return s
}

// ShouldQuery reports whether to run enrichment for a history of historyLen characters.
func (s *Sampler) ShouldQuery(historyLen int) bool {
	if s == nil || historyLen < s.minHistory || s.rate == 0 {
		return false
	}
	if s.rate >= 1 {
		return true
	}
	s.mu.Lock()
	draw := s.rand()
	s.mu.Unlock()
	return draw < s.rate
}
