// Package rng is the randomness source shared by the simulators. Tests pass a
// seeded source to get reproducible verdicts, challenges and reporters.
package rng

import (
	"math/rand"
	"sync"
	"time"
)

type Source interface {
	// Intn returns a uniform int in [0, n). n must be > 0.
	Intn(n int) int
}

// Locked wraps a *rand.Rand so it can be shared across sessions.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

func New(seed int64) *Locked {
	return &Locked{r: rand.New(rand.NewSource(seed))}
}

func NewTimeSeeded() *Locked {
	return New(time.Now().UnixNano())
}

func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Between returns a uniform int in [lo, hi], both inclusive.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Pick returns a uniform element of items. items must not be empty.
func Pick[T any](src Source, items []T) T {
	return items[src.Intn(len(items))]
}

// Fixed always returns the same offset, clamped to n-1. Handy when a test
// wants to force a branch.
type Fixed int

func (f Fixed) Intn(n int) int {
	if int(f) >= n {
		return n - 1
	}
	if f < 0 {
		return 0
	}
	return int(f)
}

// Sequence replays the given values in order (each clamped to n-1) and
// then repeats the last one.
type Sequence struct {
	mu     sync.Mutex
	values []int
	pos    int
}

func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[len(s.values)-1]
	if s.pos < len(s.values) {
		v = s.values[s.pos]
		s.pos++
	}
	return Fixed(v).Intn(n)
}
