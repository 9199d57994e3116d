package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the single randomness abstraction shared by the test composer,
// the choice randomizer and the live adaptive session. Tests pass a seeded
// source to make composition deterministic.
type Source interface {
	// IntN returns a uniform int in [0, n). Panics if n <= 0.
	IntN(n int) int

	// Shuffle randomizes the order of n elements using swap (Fisher-Yates).
	Shuffle(n int, swap func(i, j int))
}

// pcgSource wraps a PCG-backed *rand.Rand.
type pcgSource struct {
	r *rand.Rand
}

// New returns a deterministic Source for the given seed. It is not safe for
// concurrent use; see NewLocked.
func New(seed uint64) Source {
	return &pcgSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewFromTime returns a Source seeded from the current time. Used when the
// configured seed is zero.
func NewFromTime() Source {
	return New(uint64(time.Now().UnixNano()))
}

func (s *pcgSource) IntN(n int) int { return s.r.IntN(n) }

func (s *pcgSource) Shuffle(n int, swap func(i, j int)) { s.r.Shuffle(n, swap) }

// lockedSource serializes access to an underlying Source.
type lockedSource struct {
	mu    sync.Mutex
	inner Source
}

// NewLocked wraps src so it can be shared between goroutines, e.g. by an
// HTTP server composing tests for several users at once.
func NewLocked(src Source) Source {
	return &lockedSource{inner: src}
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.IntN(n)
}

func (l *lockedSource) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Shuffle(n, swap)
}

// Perm returns a random permutation of [0, n) drawn from src.
func Perm(src Source, n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	src.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}
