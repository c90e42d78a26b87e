package trievo

import (
	"math/rand/v2"
	"time"
)

// SeedStream derives independent sub-seeds from a single run seed.
//
// All sub-seeds are drawn from one master generator on the calling goroutine,
// so an identical run seed and an identical call order always yield the same
// sequence. Each sub-seed is meant to feed exactly one unit of parallel work.
// A SeedStream is not safe for concurrent use.
type SeedStream struct {
	seed   uint64
	master *rand.Rand
}

// ResolveSeed returns the explicit seed if one is given,
// otherwise one derived from the wall clock.
func ResolveSeed(seed *uint64) uint64 {
	if seed != nil {
		return *seed
	}
	return uint64(time.Now().Unix())
}

// NewSeedStream creates a sub-seed stream for the given run seed.
func NewSeedStream(seed uint64) *SeedStream {
	return &SeedStream{
		seed:   seed,
		master: NewRand(seed),
	}
}

// Seed returns the run seed the stream was created with.
func (s *SeedStream) Seed() uint64 {
	return s.seed
}

// Next draws the next sub-seed.
func (s *SeedStream) Next() uint64 {
	return s.master.Uint64()
}

// Seeds draws n sub-seeds in order.
func (s *SeedStream) Seeds(n int) []uint64 {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = s.master.Uint64()
	}
	return seeds
}

// NewRand returns a generator seeded from a single sub-seed.
// The generator must not be shared between goroutines.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
