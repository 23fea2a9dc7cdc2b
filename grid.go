package poe

import (
	"fmt"
	"strings"
)

// Error is a domain error encountered while processing gridded forecast data.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrUnknownGrid is returned when a grid name does not match any built-in grid.
	ErrUnknownGrid = Error("unknown grid name")
	// ErrGridIncomplete is returned when a custom grid is missing corners or a positive resolution.
	ErrGridIncomplete = Error("custom grid requires ordered corners and a positive resolution")
	// ErrGridMismatch is returned when a data array's size does not match the grid it claims to be on.
	ErrGridMismatch = Error("data size does not match grid")
)

// Grid describes a regular lat/lon lattice. Data arrays "on" a grid are flat
// float64 slices of length NumY*NumX, ordered south-to-north then
// west-to-east. A Grid is read-only once constructed.
type Grid struct {
	Name     string
	LLCorner [2]float64 // (lat, lon) of the lower-left grid point
	URCorner [2]float64 // (lat, lon) of the upper-right grid point
	Res      float64    // grid spacing in degrees
	NumY     int
	NumX     int
	Lats     []float64
	Lons     []float64
}

type gridSpec struct {
	ll  [2]float64
	ur  [2]float64
	res float64
}

var builtinGrids = map[string]gridSpec{
	"1deg-global":      {ll: [2]float64{-90, 0}, ur: [2]float64{90, 359}, res: 1},
	"2deg-global":      {ll: [2]float64{-90, 0}, ur: [2]float64{90, 358}, res: 2},
	"2.5deg-global":    {ll: [2]float64{-90, 0}, ur: [2]float64{90, 357.5}, res: 2.5},
	"2deg-conus":       {ll: [2]float64{20, 230}, ur: [2]float64{56, 300}, res: 2},
	"1/6th-deg-global": {ll: [2]float64{-89.9167, 0.0833}, ur: [2]float64{89.9167, 359.9167}, res: 1.0 / 6.0},
	"0.5deg-global":    {ll: [2]float64{-89.75, 0.25}, ur: [2]float64{89.75, 359.75}, res: 0.5},
}

// NewGrid returns the built-in grid with the given name. Underscores in the
// name are accepted as aliases for hyphens.
func NewGrid(name string) (*Grid, error) {
	spec, ok := builtinGrids[strings.ReplaceAll(name, "_", "-")]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownGrid)
	}
	g := &Grid{
		Name:     name,
		LLCorner: spec.ll,
		URCorner: spec.ur,
		Res:      spec.res,
	}
	g.derive()
	return g, nil
}

// NewCustomGrid builds a grid from explicit corners and resolution. Corners
// are (lat, lon) pairs and must be ordered ll < ur on both axes.
func NewCustomGrid(llCorner, urCorner [2]float64, res float64) (*Grid, error) {
	if res <= 0 || urCorner[0] <= llCorner[0] || urCorner[1] <= llCorner[1] {
		return nil, ErrGridIncomplete
	}
	g := &Grid{
		Name:     "custom",
		LLCorner: llCorner,
		URCorner: urCorner,
		Res:      res,
	}
	g.derive()
	return g, nil
}

func (g *Grid) derive() {
	g.NumY = int((g.URCorner[0]-g.LLCorner[0])/g.Res + 1)
	g.NumX = int((g.URCorner[1]-g.LLCorner[1])/g.Res + 1)
	g.Lats = coords(g.LLCorner[0], g.URCorner[0], g.Res)
	g.Lons = coords(g.LLCorner[1], g.URCorner[1], g.Res)
}

func coords(lo, hi, res float64) []float64 {
	var vs []float64
	for i := 0; ; i++ {
		v := lo + float64(i)*res
		if v > hi+1e-8 {
			break
		}
		vs = append(vs, v)
	}
	return vs
}

// NumPoints returns the flattened size of a data array on this grid.
func (g *Grid) NumPoints() int {
	return g.NumY * g.NumX
}

// Validate confirms data has exactly one value per grid point.
func (g *Grid) Validate(data []float64) error {
	if len(data) != g.NumPoints() {
		return fmt.Errorf("data has %d values, grid %q expects %d (%dx%d): %w",
			len(data), g.Name, g.NumPoints(), g.NumY, g.NumX, ErrGridMismatch)
	}
	return nil
}
