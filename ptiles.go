package poe

import (
	"fmt"
	"math"
	"sort"
)

// ErrShapeMismatch is returned when input array dimensions disagree.
const ErrShapeMismatch = Error("array dimensions do not match")

// ValuesToPtiles converts raw values to percentiles of a local climatological
// distribution, one location at a time.
//
// climo is a (percentiles x locations) table of climatological values, where
// row j holds the value at fractional percentile refPtiles[j] (0-1, strictly
// ascending). Values beyond the sampled percentile range are extrapolated
// under a Gaussian-tail assumption: k is the ratio of the spread at the
// extreme (0th/100th) percentile to the spread at the first/last sampled
// percentile, so the estimated 100th-percentile value is
// k*(climo[last]-climo[mid]) + climo[mid] with mid the percentile nearest 0.5.
// Values at or beyond the extrapolated bounds saturate to exactly 0 or 1.
//
// A value exactly equal to a climatology entry maps to that entry's reference
// percentile; the comparison is exact float equality, so callers relying on
// knot idempotence must pass bit-identical values. NaN values, and values
// whose bracketing climatology entries are NaN, yield NaN rather than an
// error, so one bad location never fails the batch.
func ValuesToPtiles(values []float64, climo [][]float64, refPtiles []float64, k float64) ([]float64, error) {
	if len(refPtiles) == 0 {
		return nil, fmt.Errorf("reference percentiles are empty: %w", ErrShapeMismatch)
	}
	if len(climo) != len(refPtiles) {
		return nil, fmt.Errorf("climo has %d percentile rows, want %d: %w",
			len(climo), len(refPtiles), ErrShapeMismatch)
	}
	for j, row := range climo {
		if len(row) != len(values) {
			return nil, fmt.Errorf("climo row %d has %d locations, values has %d: %w",
				j, len(row), len(values), ErrShapeMismatch)
		}
	}

	// Index of the reference percentile nearest-below 0.50, the anchor for
	// tail extrapolation.
	mid := sort.Search(len(refPtiles), func(i int) bool { return refPtiles[i] > 0.50 }) - 1
	if mid < 0 {
		mid = 0
	}

	out := make([]float64, len(values))
	for loc, v := range values {
		out[loc] = valueToPtile(v, climo, loc, refPtiles, k, mid)
	}
	return out, nil
}

// valueToPtile evaluates a single location. Branch order matters: the exact
// knot match is checked before tail saturation, and both tails before the
// interior interpolation. NaNs anywhere in the comparisons fall through to
// the final NaN return.
func valueToPtile(v float64, climo [][]float64, loc int, ref []float64, k float64, mid int) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	last := len(ref) - 1
	for j := range ref {
		if climo[j][loc] == v {
			return ref[j]
		}
	}
	cLo, cMid, cHi := climo[0][loc], climo[mid][loc], climo[last][loc]
	p100 := k*(cHi-cMid) + cMid
	p0 := k*(cLo-cMid) + cMid
	switch {
	case v >= p100:
		return 1.0
	case v > cHi && v < p100:
		return ref[last] + (v-cHi)/(p100-cHi)*(1-ref[last])
	case v <= p0:
		return 0.0
	case v < cLo && v > p0:
		return ref[0] + (v-cLo)/(p0-cLo)*(0-ref[0])
	case v > cLo && v < cHi:
		// Right-insertion bisect on the climatology column.
		j := sort.Search(len(ref), func(i int) bool { return climo[i][loc] > v })
		if j <= 0 || j > last {
			return math.NaN()
		}
		lo, hi := climo[j-1][loc], climo[j][loc]
		return ref[j-1] + (ref[j]-ref[j-1])*(v-lo)/(hi-lo)
	}
	return math.NaN()
}
