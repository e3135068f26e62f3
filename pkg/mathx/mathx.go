// Package mathx holds the small numeric helpers shared by the analytics code.
// Every helper returns a finite number for finite input.
package mathx

import "math"

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// OrZero returns v if it is finite, otherwise 0.
func OrZero(v float64) float64 {
	if Finite(v) {
		return v
	}
	return 0
}

// SafeDivide returns a/b, or 0 when b is zero or the quotient is not finite.
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return OrZero(a / b)
}

func Sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	return SafeDivide(Sum(xs), float64(len(xs)))
}

// PopVariance returns the population variance, 0 for an empty slice.
func PopVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(xs))
}

// PopStdDev returns the population standard deviation.
func PopStdDev(xs []float64) float64 {
	return math.Sqrt(PopVariance(xs))
}

// SampleStdDev returns the n-1 standard deviation, 0 for fewer than two values.
func SampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	return math.Sqrt(PopVariance(xs) * float64(n) / float64(n-1))
}

// MinMax returns the smallest and largest values, both 0 for an empty slice.
func MinMax(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// PctChanges returns (x[i]-x[i-1])/x[i-1] for consecutive pairs, guarded.
func PctChanges(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = SafeDivide(xs[i]-xs[i-1], xs[i-1])
	}
	return out
}

// LogReturns returns ln(x[i]/x[i-1]), skipping non-positive pairs.
func LogReturns(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		if xs[i] <= 0 || xs[i-1] <= 0 {
			continue
		}
		out = append(out, math.Log(xs[i]/xs[i-1]))
	}
	return out
}

// Clamp limits v to [lo, hi]. NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// Sign returns -1, 0 or 1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
