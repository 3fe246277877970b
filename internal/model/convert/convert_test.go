package convert

import (
	"testing"
	"time"

	"github.com/OCAP2/awacs/pkg/core"
	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCampaign() core.Campaign {
	return core.Campaign{
		ID:        uuid.MustParse("6f1c8a3e-1d2b-4c5d-9e8f-0a1b2c3d4e5f"),
		Name:      "Northern Watch",
		Theatre:   "Altis",
		Latitude:  39.5,
		Longitude: 25.1,
		StartTime: t0,
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	c := testCampaign()

	row, err := CoreToCampaign(c)
	require.NoError(t, err)
	assert.Equal(t, c.ID, row.ID)
	assert.False(t, row.Origin.IsEmpty())
	assert.False(t, row.EndTime.Valid)

	assert.Equal(t, c, CampaignToCore(row))
}

func TestCoreToCampaign_InvalidOrigin(t *testing.T) {
	c := testCampaign()
	c.Latitude = 89
	_, err := CoreToCampaign(c)
	assert.Error(t, err)
}

func TestEndTime(t *testing.T) {
	assert.False(t, EndTime(time.Time{}).Valid)
	assert.True(t, EndTime(t0).Valid)
}

func TestKillRecordRoundTrip(t *testing.T) {
	c := testCampaign()
	proj, err := ProjectorFor(&c)
	require.NoError(t, err)

	pos := core.Position3D{X: 1200, Y: 3400, Z: 2500}
	k := core.KillRecord{
		ID:         uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		CampaignID: c.ID,
		VictimID:   "31",
		VictimSide: core.SideEast,
		VictimType: "O_Plane_CAS_02_F",
		Time:       t0.Add(time.Minute),
		Position:   &pos,
		Shots: []core.Shot{
			{
				Weapon:      &core.WeaponIdentity{Weapon: "Titan AA", Magazine: "Titan AA Missile"},
				ShooterID:   "5",
				ShooterSide: core.SideWest,
				TargetID:    "31",
				TargetType:  "O_Plane_CAS_02_F",
				TargetSide:  core.SideEast,
				Time:        t0.Add(50 * time.Second),
				Hit:         true,
			},
		},
	}

	row, err := CoreToKillRecord(k, proj)
	require.NoError(t, err)
	assert.Equal(t, "31", row.VictimID)
	assert.Equal(t, "EAST", row.VictimSide)
	assert.Equal(t, "5", row.KillerID)
	assert.Equal(t, "WEST", row.KillerSide)
	assert.Equal(t, "Titan AA [Titan AA Missile]", row.Weapon)
	assert.Equal(t, 1, row.ShotCount)

	back, err := KillRecordToCore(row, proj)
	require.NoError(t, err)
	require.NotNil(t, back.Position)
	assert.InDelta(t, pos.X, back.Position.X, 1e-6)
	assert.InDelta(t, pos.Y, back.Position.Y, 1e-6)
	assert.InDelta(t, pos.Z, back.Position.Z, 1e-6)
	back.Position = k.Position
	assert.Equal(t, k, back)
}

func TestCoreToKillRecord_NoPositionNoShots(t *testing.T) {
	proj, err := ProjectorFor(nil)
	require.NoError(t, err)

	row, err := CoreToKillRecord(core.KillRecord{VictimID: "9", Time: t0}, proj)
	require.NoError(t, err)
	assert.True(t, row.Position.IsEmpty())
	assert.Equal(t, "[]", string(row.Shots))
	assert.Empty(t, row.KillerID)
	assert.Equal(t, "UNKNOWN", row.VictimSide)

	back, err := KillRecordToCore(row, proj)
	require.NoError(t, err)
	assert.Nil(t, back.Position)
	assert.Empty(t, back.Shots)
}

func TestKillRecordToCore_BadShots(t *testing.T) {
	proj, _ := ProjectorFor(nil)
	row, err := CoreToKillRecord(core.KillRecord{VictimID: "9"}, proj)
	require.NoError(t, err)
	row.Shots = []byte("{")
	row.Position = geom.NewEmptyPoint(geom.DimXY)

	_, err = KillRecordToCore(row, proj)
	assert.ErrorContains(t, err, "unmarshal shots")
}
