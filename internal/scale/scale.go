// Package scale provides the shared normalization primitives used by every
// scoring component: centered sigmoid amplification, signed tanh squashing,
// score clamping, and small statistical helpers. All score-producing code
// routes through these functions so sensitivity constants live in one place.
package scale

import (
	"math"
	"sort"
)

// CenteredSigmoid amplifies deviations of value around center onto [0,100].
// A value exactly at center maps to 50. Sensitivity controls how quickly
// small deviations saturate toward the bounds.
func CenteredSigmoid(value, sensitivity, center float64) float64 {
	return 100.0 / (1.0 + math.Exp(-sensitivity*(value-center)))
}

// SignedTanhScale squashes value into [-1,1] relative to a reference
// magnitude. Zero or negative reference yields 0.
func SignedTanhScale(value, reference float64) float64 {
	if reference <= 0 {
		return 0
	}
	return math.Tanh(value / reference)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// ClampScore bounds v to the canonical [0,100] score range.
func ClampScore(v float64) float64 {
	return Clamp(v, 0.0, 100.0)
}

// Clamp01 bounds v to [0,1], the likelihood range.
func Clamp01(v float64) float64 {
	return Clamp(v, 0.0, 1.0)
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, 0 for fewer than two
// samples.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// Median returns the middle value, 0 for an empty slice. The input is not
// modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

// PercentileRank returns the fraction of values less than or equal to v.
func PercentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, x := range values {
		if x <= v {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// LinearSlope fits y = a + b*x over the series with x = 0..n-1 and returns b.
// Fewer than two points yield 0.
func LinearSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denominator := fn*sumXX - sumX*sumX
	if math.Abs(denominator) < 1e-12 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denominator
}
