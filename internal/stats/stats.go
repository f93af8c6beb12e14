// Package stats holds the small numeric helpers shared by the chart and
// map renderers: quantiles, clipping, min-max scaling and sampling.
package stats

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Epsilon keeps min-max scaling finite when every value is equal.
const Epsilon = 1e-9

// Quantile returns the q-th quantile of values using linear interpolation
// between the two closest ranks. NaN values are ignored; an empty input
// yields NaN.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	slices.Sort(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ClipUpper returns a copy of values with every element above upper
// replaced by upper.
func ClipUpper(values []float64, upper float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Min(v, upper)
	}
	return out
}

// MinMax returns the smallest and largest non-NaN values.
func MinMax(values []float64) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Scale maps v onto [0, 1] given the observed bounds, using Epsilon to
// avoid division by zero.
func Scale(v, lo, hi float64) float64 {
	return (v - lo) / (hi - lo + Epsilon)
}

// Normalize min-max scales values onto [0, 1].
func Normalize(values []float64) []float64 {
	lo, hi := MinMax(values)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Scale(v, lo, hi)
	}
	return out
}

// ClipAndNormalize clips values at their q-th quantile and min-max scales
// the result. This bounds the influence of outliers on weights.
func ClipAndNormalize(values []float64, q float64) []float64 {
	return Normalize(ClipUpper(values, Quantile(values, q)))
}

// Mean returns the arithmetic mean of the non-NaN values, or NaN.
func Mean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SampleIndices picks k distinct indices out of n using a generator seeded
// with seed, so repeated calls return the same sample. When k >= n every
// index is returned in order.
func SampleIndices(n, k int, seed uint64) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	// Partial Fisher-Yates: only the first k positions are needed.
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}
