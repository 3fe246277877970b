package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/awacs/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Map positions are local metres (X east, Y north) from the theatre's south-west corner.
// Persisted points are projected to EPSG:3857 by offsetting from the theatre origin, so
// SQLite and PostGIS rows carry the same WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// parseComponents splits "a,b[,c]" into floats. Missing trailing components are zero.
func parseComponents(coords string, min, max int) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(strings.Trim(strings.TrimSpace(coords), "[]"), ",")
	if len(parts) < min || len(parts) > max {
		return out, ErrInvalidCoordinates
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return out, ErrInvalidCoordinates
		}
		out[i] = v
	}
	return out, nil
}

// Position3DFromString parses "x,y" or "x,y,z" into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	c, err := parseComponents(coords, 2, 3)
	if err != nil {
		return core.Position3D{}, err
	}
	return core.Position3D{X: c[0], Y: c[1], Z: c[2]}, nil
}

// Position2DFromString parses "x,y" into a core.Position2D. A trailing height is ignored.
func Position2DFromString(coords string) (core.Position2D, error) {
	c, err := parseComponents(coords, 2, 3)
	if err != nil {
		return core.Position2D{}, err
	}
	return core.Position2D{X: c[0], Y: c[1]}, nil
}

// Velocity3DFromString parses "vx,vy,vz".
func Velocity3DFromString(v string) (core.Velocity3D, error) {
	c, err := parseComponents(v, 3, 3)
	if err != nil {
		return core.Velocity3D{}, err
	}
	return core.Velocity3D{X: c[0], Y: c[1], Z: c[2]}, nil
}

// Coords3857From4326 creates a GPS point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if latitude < -85.06 || latitude > 85.06 || longitude < -180 || longitude > 180 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	return point, nil
}

// Projector places local map positions in EPSG:3857 relative to a theatre origin.
type Projector struct {
	origin geom.XY
}

// NewProjector builds a projector whose local (0,0) sits at the given longitude and latitude.
func NewProjector(longitude, latitude float64) (Projector, error) {
	p, err := Coords3857From4326(longitude, latitude)
	if err != nil {
		return Projector{}, err
	}
	c, _ := p.Coordinates()
	return Projector{origin: c.XY}, nil
}

// Point projects a local position to an XYZ point.
func (p Projector) Point(pos core.Position3D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.origin.X + pos.X, Y: p.origin.Y + pos.Y},
		Z:    pos.Z,
		Type: geom.DimXYZ,
	})
}

// Local reverses Point.
func (p Projector) Local(pt geom.Point) (core.Position3D, bool) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}, false
	}
	return core.Position3D{X: c.X - p.origin.X, Y: c.Y - p.origin.Y, Z: c.Z}, true
}
