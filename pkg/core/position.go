// pkg/core/position.go
package core

import "math"

// Position2D is a point on the map plane. X is east, Y is north, in metres.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Position3D is a point in world space. Z is height above sea level in metres.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Velocity3D is a velocity vector in metres per second.
type Velocity3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Flat drops the height component.
func (p Position3D) Flat() Position2D {
	return Position2D{X: p.X, Y: p.Y}
}

// At lifts a planar point to the given height.
func (p Position2D) At(z float64) Position3D {
	return Position3D{X: p.X, Y: p.Y, Z: z}
}

// DistanceSquared returns the squared straight-line distance to q.
func (p Position3D) DistanceSquared(q Position3D) float64 {
	dx, dy, dz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
	return dx*dx + dy*dy + dz*dz
}

// Distance returns the straight-line distance to q.
func (p Position3D) Distance(q Position3D) float64 {
	return math.Sqrt(p.DistanceSquared(q))
}

// PlanarDistance returns the distance to q ignoring height.
func (p Position3D) PlanarDistance(q Position3D) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}
