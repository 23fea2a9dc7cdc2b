// Package poe converts discrete ensemble forecasts into continuous
// probability-of-exceedance distributions and the derived tercile category
// probabilities used in seasonal forecast products.
package poe

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// ErrKernelStd is returned when the kernel standard deviation is not positive.
	ErrKernelStd = Error("kernel standard deviation must be positive")
	// ErrMemberAxis is returned when the member axis is not 0 or 1.
	ErrMemberAxis = Error("member axis must be 0 or 1")
	// ErrPtilesMissingTerciles is returned when a ptiles list lacks the tercile bounds.
	ErrPtilesMissingTerciles = Error("ptiles must contain 33 and 67")
	// ErrPtileRange is returned when a percentile falls outside its valid range.
	ErrPtileRange = Error("percentile out of range")
)

// numKernelPoints is the size of the fixed discretization of standardized
// space over [-4, 4]. It must be fine enough that adjacent requested
// percentiles resolve to distinct indexes.
const numKernelPoints = 1000

// MakePOE converts discrete standardized ensemble members into a continuous
// probability-of-exceedance distribution, reported at the given percentiles
// (strictly between 0 and 100).
//
// Each member is dressed with a Gaussian kernel of standard deviation
// kernelStd and the kernels are averaged into a single mixture PDF per
// location; the POE is one minus the normalized cumulative sum of that PDF.
// See KernelStdFromBestMember for the usual choice of kernelStd.
//
// ensemble must be 2-D: (members x locations) when memberAxis is 0, or
// (locations x members) when memberAxis is 1. The result is always
// (ptiles x locations). Locations are independent and are evaluated in
// parallel.
func MakePOE(ensemble [][]float64, ptiles []float64, kernelStd float64, memberAxis int) ([][]float64, error) {
	if memberAxis != 0 && memberAxis != 1 {
		return nil, fmt.Errorf("axis %d: %w", memberAxis, ErrMemberAxis)
	}
	if !(kernelStd > 0) {
		return nil, fmt.Errorf("kernel std %v: %w", kernelStd, ErrKernelStd)
	}
	if len(ensemble) == 0 || len(ensemble[0]) == 0 {
		return nil, fmt.Errorf("ensemble is empty: %w", ErrShapeMismatch)
	}
	width := len(ensemble[0])
	for i, row := range ensemble {
		if len(row) != width {
			return nil, fmt.Errorf("ensemble row %d has %d values, row 0 has %d: %w",
				i, len(row), width, ErrShapeMismatch)
		}
	}

	numMembers, numLocs := len(ensemble), width
	member := func(m, loc int) float64 { return ensemble[m][loc] }
	if memberAxis == 1 {
		numMembers, numLocs = width, len(ensemble)
		member = func(m, loc int) float64 { return ensemble[loc][m] }
	}

	// Discretized standardized space and the index of each requested
	// percentile's standard-normal quantile within it.
	x := floats.Span(make([]float64, numKernelPoints), -4, 4)
	ptileIdx := make([]int, len(ptiles))
	for i, p := range ptiles {
		if !(p > 0 && p < 100) {
			return nil, fmt.Errorf("percentile %v must be strictly between 0 and 100: %w", p, ErrPtileRange)
		}
		ptileIdx[i] = nearestIndex(x, distuv.UnitNormal.Quantile(p/100))
	}

	out := make([][]float64, len(ptiles))
	for i := range out {
		out[i] = make([]float64, numLocs)
	}

	// Locations are independent, so fan out over chunks of the location
	// axis. Each worker writes only its own columns of out.
	workers := runtime.GOMAXPROCS(0)
	if workers > numLocs {
		workers = numLocs
	}
	chunk := (numLocs + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > numLocs {
			hi = numLocs
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			pdf := make([]float64, len(x))
			cdf := make([]float64, len(x))
			for loc := lo; loc < hi; loc++ {
				for i := range pdf {
					pdf[i] = 0
				}
				for m := 0; m < numMembers; m++ {
					kernel := distuv.Normal{Mu: member(m, loc), Sigma: kernelStd}
					for i, xv := range x {
						pdf[i] += kernel.Prob(xv) / float64(numMembers)
					}
				}
				floats.CumSum(cdf, pdf)
				total := cdf[len(cdf)-1]
				for i, idx := range ptileIdx {
					out[i][loc] = 1 - cdf[idx]/total
				}
			}
		}(lo, hi)
	}
	wg.Wait()
	return out, nil
}

// POEToTerciles reduces a POE table to the below/near/above-normal category
// probabilities anchored at the 33rd and 67th percentiles. ptiles must
// contain exactly 33 and 67 and describes the rows of poe.
//
// near is 1 - below - above and is not clamped: a noisy POE with
// below+above > 1 yields a negative near probability.
func POEToTerciles(poe [][]float64, ptiles []float64) (below, near, above []float64, err error) {
	i33, i67 := indexOf(ptiles, 33), indexOf(ptiles, 67)
	if i33 < 0 || i67 < 0 {
		return nil, nil, nil, ErrPtilesMissingTerciles
	}
	if len(poe) != len(ptiles) {
		return nil, nil, nil, fmt.Errorf("poe has %d rows, ptiles has %d: %w",
			len(poe), len(ptiles), ErrShapeMismatch)
	}
	numLocs := len(poe[i33])
	if len(poe[i67]) != numLocs {
		return nil, nil, nil, fmt.Errorf("poe rows have unequal lengths: %w", ErrShapeMismatch)
	}
	below = make([]float64, numLocs)
	near = make([]float64, numLocs)
	above = make([]float64, numLocs)
	for loc := 0; loc < numLocs; loc++ {
		below[loc] = 1 - poe[i33][loc]
		above[loc] = poe[i67][loc]
		near[loc] = 1 - (below[loc] + above[loc])
	}
	return below, near, above, nil
}

// KernelStdFromBestMember returns the dressing kernel standard deviation
// sqrt(1 - rBest^2) implied by the correlation of the historically best
// ensemble member with observations.
func KernelStdFromBestMember(rBest float64) float64 {
	return math.Sqrt(1 - rBest*rBest)
}

func indexOf(xs []float64, v float64) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func nearestIndex(xs []float64, v float64) int {
	best := 0
	bestDiff := math.Abs(xs[0] - v)
	for i, x := range xs[1:] {
		if d := math.Abs(x - v); d < bestDiff {
			best, bestDiff = i+1, d
		}
	}
	return best
}
