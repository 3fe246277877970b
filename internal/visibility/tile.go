package visibility

import (
	"math"
	"math/bits"

	"github.com/OCAP2/awacs/pkg/core"
)

const maxStep = int64(1) << 62

// Tile is a quantized grid cell together with the step that produced it.
type Tile struct {
	X, Y, Z int64
	Step    int64
}

// Key identifies a cached query. The pair is ordered: A is the origin tile.
type Key struct {
	A, B Tile
}

// TileStep returns the quantization step for a query spanning distance metres:
// floor(distance) >> 4, at least 1, rounded up to a power of two.
func TileStep(distance float64) int64 {
	if !(distance >= 1) {
		return 1
	}
	if distance >= float64(maxStep) {
		return maxStep
	}
	d := int64(math.Floor(distance)) >> 4
	if d <= 1 {
		return 1
	}
	return int64(1) << bits.Len64(uint64(d-1))
}

// TileOf quantizes p with the given step.
func TileOf(p core.Position3D, step int64) Tile {
	s := float64(step)
	return Tile{
		X:    int64(math.Floor(p.X / s)),
		Y:    int64(math.Floor(p.Y / s)),
		Z:    int64(math.Floor(p.Z / s)),
		Step: step,
	}
}

// KeyFor builds the cache key for a query from a to b with a shared step
// derived from distance.
func KeyFor(distance float64, a, b core.Position3D) Key {
	step := TileStep(distance)
	return Key{A: TileOf(a, step), B: TileOf(b, step)}
}
