// Package stats holds the numeric primitives shared by the analysis agents
// and the pricing models.
package stats

import (
	"math"
	"sort"

	"RoomArb/internal/domain/models"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Min returns the smallest value, or 0 for an empty slice.
func Min(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Max returns the largest value, or 0 for an empty slice.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// StdDev is the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// Median does not modify xs.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := make([]float64, n)
	copy(s, xs)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// CV is the coefficient of variation (stddev / mean), 0 when the mean is 0.
func CV(xs []float64) float64 {
	m := Mean(xs)
	if m == 0 {
		return 0
	}
	return StdDev(xs) / math.Abs(m)
}

// Summarize computes the PriceStats of a series.
func Summarize(xs []float64) models.PriceStats {
	return models.PriceStats{
		Count:  len(xs),
		Mean:   Round2(Mean(xs)),
		Median: Round2(Median(xs)),
		StdDev: Round2(StdDev(xs)),
		Min:    Round2(Min(xs)),
		Max:    Round2(Max(xs)),
	}
}

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds a rate or probability to [0, 1].
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// ClampPct bounds a percentage to [0, 100].
func ClampPct(v float64) float64 { return Clamp(v, 0, 100) }

// Round2 rounds to two decimals.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// CeilCents is the smallest two-decimal value not below v.
func CeilCents(v float64) float64 {
	r := math.Ceil(v*100) / 100
	if r < v {
		r = (math.Ceil(v*100) + 1) / 100
	}
	return r
}

// FloorCents is the largest two-decimal value not above v.
func FloorCents(v float64) float64 {
	r := math.Floor(v*100) / 100
	if r > v {
		r = (math.Floor(v*100) - 1) / 100
	}
	return r
}

// PctChange returns (to - from) / from * 100, 0 when from is 0.
func PctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
