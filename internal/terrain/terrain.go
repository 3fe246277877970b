// Package terrain provides the height and line-of-sight queries the contact
// tracker needs, backed by a regular heightmap grid.
package terrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/awacs/pkg/core"
)

// ErrOutOfBounds is returned for queries outside the grid.
var ErrOutOfBounds = errors.New("position outside terrain")

// Grid is a heightmap of Cols x Rows posts spaced CellSize metres apart.
// Post (0, 0) sits at Origin and rows run north (increasing Y).
type Grid struct {
	Origin   core.Position2D
	CellSize float64
	Cols     int
	Rows     int

	heights []float64
}

// NewGrid builds a grid from row-major heights, southernmost row first.
func NewGrid(origin core.Position2D, cellSize float64, cols, rows int, heights []float64) (*Grid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("cell size must be positive, got %v", cellSize)
	}
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("grid needs at least 2x2 posts, got %dx%d", cols, rows)
	}
	if len(heights) != cols*rows {
		return nil, fmt.Errorf("expected %d heights, got %d", cols*rows, len(heights))
	}
	return &Grid{
		Origin:   origin,
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		heights:  heights,
	}, nil
}

func (g *Grid) post(col, row int) float64 {
	return g.heights[row*g.Cols+col]
}

// Width returns the east-west extent in metres.
func (g *Grid) Width() float64 { return float64(g.Cols-1) * g.CellSize }

// Height returns the north-south extent in metres.
func (g *Grid) Height() float64 { return float64(g.Rows-1) * g.CellSize }

// HeightAt returns the bilinearly interpolated terrain height at p.
func (g *Grid) HeightAt(p core.Position2D) (float64, error) {
	fx := (p.X - g.Origin.X) / g.CellSize
	fy := (p.Y - g.Origin.Y) / g.CellSize
	if math.IsNaN(fx) || math.IsNaN(fy) ||
		fx < 0 || fy < 0 || fx > float64(g.Cols-1) || fy > float64(g.Rows-1) {
		return 0, fmt.Errorf("%w: %.1f,%.1f", ErrOutOfBounds, p.X, p.Y)
	}

	c0, r0 := int(fx), int(fy)
	c1, r1 := min(c0+1, g.Cols-1), min(r0+1, g.Rows-1)
	tx, ty := fx-float64(c0), fy-float64(r0)

	south := lerp(g.post(c0, r0), g.post(c1, r0), tx)
	north := lerp(g.post(c0, r1), g.post(c1, r1), tx)
	return lerp(south, north, ty), nil
}

// LineOfSight reports whether the straight segment from a to b stays above
// the terrain. The segment is sampled every half cell; endpoints are not
// tested against the ground they stand on.
func (g *Grid) LineOfSight(a, b core.Position3D) (bool, error) {
	if _, err := g.HeightAt(a.Flat()); err != nil {
		return false, err
	}
	if _, err := g.HeightAt(b.Flat()); err != nil {
		return false, err
	}

	steps := int(math.Ceil(a.PlanarDistance(b) / (g.CellSize / 2)))
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		p := core.Position2D{X: lerp(a.X, b.X, t), Y: lerp(a.Y, b.Y, t)}
		ground, err := g.HeightAt(p)
		if err != nil {
			return false, err
		}
		if ground > lerp(a.Z, b.Z, t) {
			return false, nil
		}
	}
	return true, nil
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Flat is terrain of constant height with nothing in the way.
type Flat struct {
	Elevation float64
}

// HeightAt returns the constant elevation.
func (f Flat) HeightAt(core.Position2D) (float64, error) {
	return f.Elevation, nil
}

// LineOfSight is true unless the segment dips below the plane.
func (f Flat) LineOfSight(a, b core.Position3D) (bool, error) {
	return a.Z >= f.Elevation && b.Z >= f.Elevation, nil
}
