package xg

import (
	"math/rand"
	"sync"
)

const (
	noiseLow  = 0.85
	noiseHigh = 1.15
)

// UniformNoise draws a bounded variance factor from a seeded PRNG.
// Safe for concurrent use.
type UniformNoise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformNoise creates a noise source from the given seed.
func NewUniformNoise(seed int64) *UniformNoise {
	return &UniformNoise{rng: rand.New(rand.NewSource(seed))}
}

func (n *UniformNoise) Factor() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return noiseLow + n.rng.Float64()*(noiseHigh-noiseLow)
}

func (n *UniformNoise) Bounds() (low, high float64) {
	return noiseLow, noiseHigh
}

// FixedNoise always returns the same factor. Used in tests and for
// deterministic replay runs.
type FixedNoise struct {
	Value float64
}

func (n FixedNoise) Factor() float64 {
	return n.Value
}

func (n FixedNoise) Bounds() (low, high float64) {
	return n.Value, n.Value
}
