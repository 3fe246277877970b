// Package convert maps kill-log records between core types and GORM rows.
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OCAP2/awacs/internal/geo"
	"github.com/OCAP2/awacs/internal/model"
	"github.com/OCAP2/awacs/internal/util"
	"github.com/OCAP2/awacs/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// ProjectorFor returns the projector anchored at the campaign's theatre
// origin. A nil campaign projects from (0,0).
func ProjectorFor(c *core.Campaign) (geo.Projector, error) {
	if c == nil {
		return geo.NewProjector(0, 0)
	}
	p, err := geo.NewProjector(c.Longitude, c.Latitude)
	if err != nil {
		return geo.Projector{}, fmt.Errorf("campaign %q origin: %w", c.Name, err)
	}
	return p, nil
}

// shotsToJSON converts shots to datatypes.JSON for DB storage.
func shotsToJSON(shots []core.Shot) (datatypes.JSON, error) {
	if len(shots) == 0 {
		return datatypes.JSON("[]"), nil
	}
	data, err := json.Marshal(shots)
	if err != nil {
		return nil, fmt.Errorf("marshal shots: %w", err)
	}
	return datatypes.JSON(data), nil
}

// CoreToCampaign converts a core.Campaign to a GORM model.Campaign.
func CoreToCampaign(c core.Campaign) (model.Campaign, error) {
	origin, err := geo.Coords3857From4326(c.Longitude, c.Latitude)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("campaign %q origin: %w", c.Name, err)
	}
	return model.Campaign{
		ID:        c.ID,
		Name:      c.Name,
		Theatre:   c.Theatre,
		Origin:    origin,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		StartTime: c.StartTime,
	}, nil
}

// EndTime marks a campaign row closed.
func EndTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// CoreToKillRecord converts a core.KillRecord to a GORM model.KillRecord,
// projecting the victim's last known position through proj.
func CoreToKillRecord(k core.KillRecord, proj geo.Projector) (model.KillRecord, error) {
	shots, err := shotsToJSON(k.Shots)
	if err != nil {
		return model.KillRecord{}, err
	}

	row := model.KillRecord{
		ID:         k.ID,
		CampaignID: k.CampaignID,
		Time:       k.Time,
		VictimID:   string(k.VictimID),
		VictimSide: k.VictimSide.String(),
		VictimType: k.VictimType,
		Position:   geom.NewEmptyPoint(geom.DimXYZ),
		ShotCount:  len(k.Shots),
		Shots:      shots,
	}
	if k.Position != nil {
		row.Position = proj.Point(*k.Position)
	}
	if killer, ok := k.Killer(); ok {
		row.KillerID = string(killer.ShooterID)
		row.KillerSide = killer.ShooterSide.String()
		row.Weapon = util.WeaponText(killer.Weapon)
	}
	return row, nil
}
