// pkg/core/combat.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// EntityID is the host's stable identifier for a unit or vehicle.
type EntityID string

// Unit is the metadata the host registers for an entity.
type Unit struct {
	ID   EntityID `json:"id"`
	Side Side     `json:"side"`
	Type string   `json:"type"`
	Name string   `json:"name,omitempty"`
}

// WeaponIdentity names the vehicle, weapon and magazine involved in a shot.
type WeaponIdentity struct {
	Vehicle  string `json:"vehicle,omitempty"`
	Weapon   string `json:"weapon"`
	Magazine string `json:"magazine,omitempty"`
}

// Shot is one weapon-fire or hit event against a target.
// TargetSide is the side the host reported for the target at the time of the shot.
type Shot struct {
	Weapon      *WeaponIdentity `json:"weapon,omitempty"`
	ShooterID   EntityID        `json:"shooterId"`
	ShooterSide Side            `json:"shooterSide"`
	TargetID    EntityID        `json:"targetId"`
	TargetType  string          `json:"targetType,omitempty"`
	TargetSide  Side            `json:"targetSide"`
	Time        time.Time       `json:"time"`
	Hit         bool            `json:"hit"`
}

// Campaign is a running persistent campaign session.
type Campaign struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Theatre   string    `json:"theatre"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	StartTime time.Time `json:"startTime"`
}

// UploadMetadata describes an exported kill log sent to the stats server.
type UploadMetadata struct {
	CampaignName string
	Theatre      string
	Duration     float64 // seconds
	Tag          string
}

// KillRecord is an attributed kill ready for the kill log.
type KillRecord struct {
	ID         uuid.UUID   `json:"id"`
	CampaignID uuid.UUID   `json:"campaignId"`
	VictimID   EntityID    `json:"victimId"`
	VictimSide Side        `json:"victimSide"`
	VictimType string      `json:"victimType,omitempty"`
	Time       time.Time   `json:"time"`
	Position   *Position3D `json:"position,omitempty"`
	Shots      []Shot      `json:"shots"`
}

// Killer returns the shot credited with the kill: the last confirmed hit,
// or the last shot when no hit was recorded.
func (k *KillRecord) Killer() (Shot, bool) {
	for i := len(k.Shots) - 1; i >= 0; i-- {
		if k.Shots[i].Hit {
			return k.Shots[i], true
		}
	}
	if len(k.Shots) > 0 {
		return k.Shots[len(k.Shots)-1], true
	}
	return Shot{}, false
}
