// Package random is the single seedable generator threaded through a run.
// Identical seeds and identical call sequences yield identical draws.
package random

import (
	"math/rand/v2"

	"tattletale/internal/sim/model"
)

type Random struct {
	seed int64
	rng  *rand.Rand
}

func New(seed int64) *Random {
	r := &Random{}
	r.Seed(seed)
	return r
}

// Seed resets the stream.
func (r *Random) Seed(seed int64) {
	r.seed = seed
	r.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func (r *Random) CurrentSeed() int64 { return r.seed }

// Float returns a value in [min, max).
func (r *Random) Float(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// UInt returns a value in [min, max] inclusive.
func (r *Random) UInt(min, max uint32) uint32 {
	if max < min {
		model.Violate("random range [%d,%d] is empty", min, max)
	}
	return min + uint32(r.rng.Uint64N(uint64(max-min)+1))
}

// Int returns a value in [min, max] inclusive.
func (r *Random) Int(min, max int) int {
	if max < min {
		model.Violate("random range [%d,%d] is empty", min, max)
	}
	return min + r.rng.IntN(max-min+1)
}

// PickIndex draws an index with probability proportional to its weight.
// Non-positive weights are never picked. When every weight is zero the draw is
// uniform if allZeroesUniform is set, otherwise it is caller misuse.
func (r *Random) PickIndex(weights []float64, allZeroesUniform bool) int {
	if len(weights) == 0 {
		model.Violate("PickIndex on an empty distribution")
	}
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		if !allZeroesUniform {
			model.Violate("PickIndex on an all-zero distribution of %d weights", len(weights))
		}
		return r.rng.IntN(len(weights))
	}

	target := r.rng.Float64() * total
	var acc float64
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	// Rounding can leave target == total.
	return last
}
