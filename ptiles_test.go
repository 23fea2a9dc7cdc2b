package poe_test

import (
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cpcwx/poe"
)

var refPtiles = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// climoColumn repeats the same nine-percentile climatology at n locations.
func climoColumn(n int) [][]float64 {
	col := []float64{15.2, 16.4, 17.8, 18.8, 20.5, 22.3, 23.7, 24.6, 27.6}
	climo := make([][]float64, len(col))
	for j, v := range col {
		climo[j] = make([]float64, n)
		for loc := range climo[j] {
			climo[j][loc] = v
		}
	}
	return climo
}

func TestValuesToPtiles(t *testing.T) {
	values := []float64{14.9, 21.1, 30.2, 28.4, 12.12}
	climo := climoColumn(len(values))
	climo[4][1] = math.NaN() // NaN climatology entry knocks out location 1 only

	got, err := poe.ValuesToPtiles(values, climo, refPtiles, 1.343)
	require.NoError(t, err)

	want := []float64{0.08349744, math.NaN(), 1.0, 0.93285016, 0.0}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("unexpected ptiles (-want +got):\n%s", diff)
	}
}

func TestValuesToPtiles_KnotsAreExact(t *testing.T) {
	climo := climoColumn(len(refPtiles))
	values := make([]float64, len(refPtiles))
	for j := range values {
		values[j] = climo[j][j]
	}

	got, err := poe.ValuesToPtiles(values, climo, refPtiles, 1.343)
	require.NoError(t, err)

	for j, p := range got {
		if p != refPtiles[j] {
			t.Errorf("value at knot %d maps to %v, want exactly %v", j, p, refPtiles[j])
		}
	}
}

func TestValuesToPtiles_Saturation(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{name: "far above", value: 1000, want: 1.0},
		{name: "far below", value: -1000, want: 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := poe.ValuesToPtiles([]float64{tt.value}, climoColumn(1), refPtiles, 1.343)
			require.NoError(t, err)
			if got[0] != tt.want {
				t.Errorf("ptile = %v, want exactly %v", got[0], tt.want)
			}
		})
	}
}

func TestValuesToPtiles_NaNValue(t *testing.T) {
	got, err := poe.ValuesToPtiles([]float64{math.NaN()}, climoColumn(1), refPtiles, 1.343)
	require.NoError(t, err)
	if !math.IsNaN(got[0]) {
		t.Errorf("ptile = %v, want NaN", got[0])
	}
}

func TestValuesToPtiles_Monotonic(t *testing.T) {
	dist := distuv.Normal{Mu: 20, Sigma: 5, Src: rand.NewSource(42)}

	// One random climatology column, probed with a sorted sweep of random
	// values spanning both tails.
	col := make([]float64, len(refPtiles))
	for j := range col {
		col[j] = dist.Rand()
	}
	sort.Float64s(col)
	climo := make([][]float64, len(col))

	const n = 200
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, n)
	for i := range values {
		values[i] = -10 + 60*rng.Float64()
	}
	sort.Float64s(values)
	for j, v := range col {
		climo[j] = make([]float64, n)
		for loc := range climo[j] {
			climo[j][loc] = v
		}
	}

	got, err := poe.ValuesToPtiles(values, climo, refPtiles, 1.343)
	require.NoError(t, err)

	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("ptile decreased from %v to %v as value increased from %v to %v",
				got[i-1], got[i], values[i-1], values[i])
		}
	}
}

func TestValuesToPtiles_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		climo  [][]float64
		ref    []float64
	}{
		{
			name:   "climo rows != ref ptiles",
			values: []float64{1},
			climo:  [][]float64{{1}, {2}},
			ref:    []float64{0.1, 0.5, 0.9},
		},
		{
			name:   "climo columns != values",
			values: []float64{1, 2},
			climo:  [][]float64{{1}, {2}, {3}},
			ref:    []float64{0.1, 0.5, 0.9},
		},
		{
			name:   "empty ref ptiles",
			values: []float64{1},
			climo:  nil,
			ref:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := poe.ValuesToPtiles(tt.values, tt.climo, tt.ref, 1.343)
			require.ErrorIs(t, err, poe.ErrShapeMismatch)
		})
	}
}

func BenchmarkValuesToPtiles(b *testing.B) {
	const n = 10000
	climo := climoColumn(n)
	dist := distuv.Normal{Mu: 20, Sigma: 5, Src: rand.NewSource(42)}
	values := make([]float64, n)
	for i := range values {
		values[i] = dist.Rand()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := poe.ValuesToPtiles(values, climo, refPtiles, 1.343); err != nil {
			b.Fatal(err)
		}
	}
}
