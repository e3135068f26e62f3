package mathx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 2.0, SafeDivide(4, 2))
	assert.Equal(t, 0.0, SafeDivide(4, 0))
	assert.Equal(t, 0.0, SafeDivide(math.Inf(1), 1))
	assert.Equal(t, 0.0, SafeDivide(math.NaN(), 1))
}

func TestStats(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-12)
	assert.InDelta(t, 4.0, PopVariance(xs), 1e-12)
	assert.InDelta(t, 2.0, PopStdDev(xs), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), SampleStdDev(xs), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, PopStdDev(nil))
	assert.Equal(t, 0.0, SampleStdDev([]float64{1}))

	lo, hi := MinMax(xs)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
}

func TestReturns(t *testing.T) {
	assert.Equal(t, []float64{0.5, 0}, PctChanges([]float64{2, 3, 3}))
	assert.Equal(t, []float64{0}, PctChanges([]float64{0, 3}))
	assert.Nil(t, PctChanges([]float64{1}))

	lr := LogReturns([]float64{1, math.E, 0, 1})
	assert.Len(t, lr, 1)
	assert.InDelta(t, 1.0, lr[0], 1e-12)
}

func TestClampSign(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 1))
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, -1.0, Sign(-3))
	assert.Equal(t, 0.0, Sign(0))
}
