package simharness

import (
	"math/rand"
	"sync"
)

// DeterministicRand is a seedable random source: two harnesses created with
// the same seed generate the same sequence of rules and facts, so a failing
// soak run can be reproduced from its seed alone.
type DeterministicRand struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// NewDeterministicRand creates a random source seeded with seed.
func NewDeterministicRand(seed int64) *DeterministicRand {
	return &DeterministicRand{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed this source was constructed with.
func (r *DeterministicRand) Seed() int64 {
	return r.seed
}

// Intn returns a random integer in [0, n).
func (r *DeterministicRand) Intn(n int) int {
	if n <= 0 {
		panic("simharness: Intn called with n <= 0")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a random float in [0.0, 1.0).
func (r *DeterministicRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Chance returns true with probability p.
func (r *DeterministicRand) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Choice returns a random element of slice, or "" if it is empty.
func (r *DeterministicRand) Choice(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	return slice[r.Intn(len(slice))]
}

// String generates a random alphanumeric string of the given length.
func (r *DeterministicRand) String(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[r.Intn(len(charset))]
	}
	return string(b)
}
