package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tattletale/internal/sim/model"
)

func TestRandom_SameSeedSameStream(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float(-1, 1), b.Float(-1, 1))
		require.Equal(t, a.UInt(0, 9), b.UInt(0, 9))
	}

	a.Seed(7)
	c := New(7)
	assert.Equal(t, c.Int(-5, 5), a.Int(-5, 5))
	assert.Equal(t, int64(7), a.CurrentSeed())
}

func TestRandom_Ranges(t *testing.T) {
	r := New(1)
	for i := 0; i < 1000; i++ {
		f := r.Float(-1, 1)
		require.GreaterOrEqual(t, f, -1.0)
		require.Less(t, f, 1.0)
		u := r.UInt(3, 5)
		require.GreaterOrEqual(t, u, uint32(3))
		require.LessOrEqual(t, u, uint32(5))
	}
	assert.Equal(t, uint32(4), r.UInt(4, 4))
}

func TestPickIndex_NeverPicksZeroWeight(t *testing.T) {
	r := New(3)
	weights := []float64{0, 0.5, 0, 0.25}
	for i := 0; i < 2000; i++ {
		idx := r.PickIndex(weights, false)
		require.Contains(t, []int{1, 3}, idx)
	}
}

func TestPickIndex_ProportionalToWeight(t *testing.T) {
	r := New(11)
	weights := []float64{1, 3}
	counts := [2]int{}
	const trials = 20000
	for i := 0; i < trials; i++ {
		counts[r.PickIndex(weights, false)]++
	}
	assert.InDelta(t, 0.75, float64(counts[1])/trials, 0.02)
}

func TestPickIndex_AllZeroUniformFallback(t *testing.T) {
	r := New(5)
	weights := []float64{0, 0, 0, 0}
	counts := make([]int, len(weights))
	const trials = 40000
	for i := 0; i < trials; i++ {
		counts[r.PickIndex(weights, true)]++
	}
	for _, c := range counts {
		assert.InDelta(t, 0.25, float64(c)/trials, 0.02)
	}
}

func TestPickIndex_AllZeroWithoutFallbackPanics(t *testing.T) {
	r := New(5)
	assert.PanicsWithError(t, (&model.InvariantError{Msg: "PickIndex on an all-zero distribution of 2 weights"}).Error(), func() {
		r.PickIndex([]float64{0, 0}, false)
	})
}
