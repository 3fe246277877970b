package geo

import "math"

// Bearing returns the direction of the vector (dx east, dy north) in radians,
// measured clockwise from north. The result is in (-π, π].
func Bearing(dx, dy float64) float64 {
	return math.Atan2(dx, dy)
}

// CompassDegrees converts a bearing in radians to degrees in [0, 360).
func CompassDegrees(rad float64) float64 {
	deg := math.Mod(rad*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// CompassCode formats a bearing as the three-digit heading players read, 000 to 359.
func CompassCode(rad float64) int {
	return int(math.Round(CompassDegrees(rad))) % 360
}
