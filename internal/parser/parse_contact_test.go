package parser

import (
	"testing"
	"time"

	"github.com/OCAP2/awacs/internal/geo"
	"github.com/OCAP2/awacs/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensor(t *testing.T) {
	p := newTestParser()

	s, err := p.ParseSensor([]string{"1200,3400", "WEST", "50000"})
	require.NoError(t, err)
	assert.Equal(t, core.Position2D{X: 1200, Y: 3400}, s.Position)
	assert.Equal(t, core.SideWest, s.Side)
	assert.Equal(t, 50_000.0, s.Range)

	_, err = p.ParseSensor([]string{"1200,3400", "WEST"})
	assert.ErrorIs(t, err, ErrInsufficientArgs)

	_, err = p.ParseSensor([]string{"1200", "WEST", "50000"})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	_, err = p.ParseSensor([]string{"1200,3400", "WEST", "-1"})
	assert.ErrorContains(t, err, "error parsing range")
}

func TestParseAir(t *testing.T) {
	p := newTestParser()

	a, err := p.ParseAir([]string{"31", "EAST", "100,200,3000", "10,0,-1"})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("31"), a.ID)
	assert.Equal(t, core.SideEast, a.Side)
	assert.Equal(t, core.Position3D{X: 100, Y: 200, Z: 3000}, a.Position)
	assert.Equal(t, core.Velocity3D{X: 10, Z: -1}, a.Velocity)

	a, err = p.ParseAir([]string{"31", "EAST", "100,200,3000"})
	require.NoError(t, err)
	assert.Equal(t, core.Velocity3D{}, a.Velocity)

	_, err = p.ParseAir([]string{"31", "EAST", "100,200,3000", "fast"})
	assert.ErrorContains(t, err, "error parsing velocity")
}

func TestParseTime(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseTime([]string{"600"})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(600, 0).UTC(), got)

	_, err = p.ParseTime(nil)
	assert.ErrorIs(t, err, ErrInsufficientArgs)
}

func TestParseReport(t *testing.T) {
	p := newTestParser()

	r, err := p.ParseReport([]string{"30", "false", "7", "WEST", "0,0,15"})
	require.NoError(t, err)
	assert.Equal(t, ReportRequest{
		Time:       time.Unix(30, 0).UTC(),
		Friendly:   false,
		ObserverID: "7",
		Side:       core.SideWest,
		Position:   core.Position3D{Z: 15},
	}, r)

	_, err = p.ParseReport([]string{"30", "perhaps", "7", "WEST", "0,0,15"})
	assert.ErrorContains(t, err, "error parsing friendly")
}

func TestParseObserverAndUnits(t *testing.T) {
	p := newTestParser()

	id, err := p.ParseObserver([]string{`"7"`})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("7"), id)

	u, err := p.ParseUnits([]string{"7", "IMPERIAL"})
	require.NoError(t, err)
	assert.Equal(t, UnitsRequest{ObserverID: "7", Units: core.Imperial}, u)

	_, err = p.ParseUnits([]string{"7", "nautical"})
	assert.ErrorContains(t, err, "error parsing units")
}
