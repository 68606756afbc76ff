// Package randomizer supplies uniformly distributed indexes for cache eviction.
package randomizer

import (
	"math/rand"
	"sync"
	"time"
)

// Randomizer returns a uniformly distributed integer in [0, n).
type Randomizer interface {
	RandomNumber(n int) int
}

// SimpleRandomizer is a Randomizer backed by a single math/rand source.
// It is safe for concurrent use.
type SimpleRandomizer struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSimpleRandomizer seeds a SimpleRandomizer from the current time.
func NewSimpleRandomizer() *SimpleRandomizer {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a SimpleRandomizer with a fixed seed.
func NewSeeded(seed int64) *SimpleRandomizer {
	return &SimpleRandomizer{r: rand.New(rand.NewSource(seed))}
}

// RandomNumber panics if n <= 0.
func (s *SimpleRandomizer) RandomNumber(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

var (
	defaultOnce sync.Once
	defaultRand *SimpleRandomizer
)

// Default returns the process-wide randomizer.
func Default() *SimpleRandomizer {
	defaultOnce.Do(func() {
		defaultRand = NewSimpleRandomizer()
	})
	return defaultRand
}
