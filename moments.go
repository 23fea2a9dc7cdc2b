package poe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrTooFewPtiles is returned when fewer than two percentiles are supplied.
const ErrTooFewPtiles = Error("at least two percentiles are required to fit moments")

// POEToMoments recovers the climatological mean and standard deviation at
// each location from a percentile-value table.
//
// climo is (percentiles x locations), where row j holds the value at
// percentile ptiles[j] (0-100, exclusive). Under the Gaussian assumption the
// value at percentile p is mean + std*Phi^-1(p/100), so a per-location
// least-squares fit of the column against the standard-normal quantiles
// yields the mean as intercept and the std as slope. A column containing NaN
// yields NaN moments for that location only.
func POEToMoments(climo [][]float64, ptiles []float64) (mean, std []float64, err error) {
	if len(ptiles) < 2 {
		return nil, nil, ErrTooFewPtiles
	}
	if len(climo) != len(ptiles) {
		return nil, nil, fmt.Errorf("climo has %d percentile rows, want %d: %w",
			len(climo), len(ptiles), ErrShapeMismatch)
	}
	numLocs := len(climo[0])
	for j, row := range climo {
		if len(row) != numLocs {
			return nil, nil, fmt.Errorf("climo row %d has %d locations, row 0 has %d: %w",
				j, len(row), numLocs, ErrShapeMismatch)
		}
	}

	z := make([]float64, len(ptiles))
	for i, p := range ptiles {
		if p <= 0 || p >= 100 {
			return nil, nil, fmt.Errorf("percentile %v must be strictly between 0 and 100: %w", p, ErrPtileRange)
		}
		z[i] = distuv.UnitNormal.Quantile(p / 100)
	}

	mean = make([]float64, numLocs)
	std = make([]float64, numLocs)
	col := make([]float64, len(ptiles))
	for loc := 0; loc < numLocs; loc++ {
		ok := true
		for j := range climo {
			col[j] = climo[j][loc]
			if math.IsNaN(col[j]) {
				ok = false
			}
		}
		if !ok {
			mean[loc], std[loc] = math.NaN(), math.NaN()
			continue
		}
		mean[loc], std[loc] = stat.LinearRegression(z, col, nil, false)
	}
	return mean, std, nil
}

// Standardize converts a (members x locations) ensemble of raw values to
// standardized anomalies (v - mean[loc]) / std[loc]. Locations with a NaN or
// non-positive standard deviation yield NaN for every member.
func Standardize(ensemble [][]float64, mean, std []float64) ([][]float64, error) {
	if len(mean) != len(std) {
		return nil, fmt.Errorf("mean has %d locations, std has %d: %w",
			len(mean), len(std), ErrShapeMismatch)
	}
	for m, row := range ensemble {
		if len(row) != len(mean) {
			return nil, fmt.Errorf("ensemble row %d has %d locations, moments have %d: %w",
				m, len(row), len(mean), ErrShapeMismatch)
		}
	}
	out := make([][]float64, len(ensemble))
	for m, row := range ensemble {
		out[m] = make([]float64, len(row))
		for loc, v := range row {
			if !(std[loc] > 0) {
				out[m][loc] = math.NaN()
				continue
			}
			out[m][loc] = (v - mean[loc]) / std[loc]
		}
	}
	return out, nil
}
