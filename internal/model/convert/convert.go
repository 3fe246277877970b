package convert

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/awacs/internal/geo"
	"github.com/OCAP2/awacs/internal/model"
	"github.com/OCAP2/awacs/pkg/core"
)

// CampaignToCore converts a GORM Campaign to a core.Campaign.
func CampaignToCore(c model.Campaign) core.Campaign {
	return core.Campaign{
		ID:        c.ID,
		Name:      c.Name,
		Theatre:   c.Theatre,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		StartTime: c.StartTime,
	}
}

// KillRecordToCore converts a GORM KillRecord to a core.KillRecord. Sides
// that no longer parse read as unknown.
func KillRecordToCore(k model.KillRecord, proj geo.Projector) (core.KillRecord, error) {
	var shots []core.Shot
	if len(k.Shots) > 0 {
		if err := json.Unmarshal(k.Shots, &shots); err != nil {
			return core.KillRecord{}, fmt.Errorf("unmarshal shots: %w", err)
		}
	}

	side, _ := core.ParseSide(k.VictimSide)
	rec := core.KillRecord{
		ID:         k.ID,
		CampaignID: k.CampaignID,
		VictimID:   core.EntityID(k.VictimID),
		VictimSide: side,
		VictimType: k.VictimType,
		Time:       k.Time,
		Shots:      shots,
	}
	if pos, ok := proj.Local(k.Position); ok {
		rec.Position = &pos
	}
	return rec, nil
}
