package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Campaign{},
	&KillRecord{},
	&Performance{},
}

// Campaign is one persistent campaign session.
type Campaign struct {
	ID        uuid.UUID    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time    `json:"createdAt"`
	Name      string       `json:"name" gorm:"size:255;index:idx_campaign_name"`
	Theatre   string       `json:"theatre" gorm:"size:127"`
	Origin    geom.Point   `json:"origin"` // theatre south-west corner, EPSG:3857
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	StartTime time.Time    `json:"startTime" gorm:"index:idx_campaign_start"`
	EndTime   sql.NullTime `json:"endTime"`
}

func (*Campaign) TableName() string {
	return "campaigns"
}

// KillRecord is one attributed death. Shots carries the full contributing
// shot list; the killer columns duplicate the decisive shot for querying.
type KillRecord struct {
	ID         uuid.UUID      `json:"id" gorm:"primaryKey;size:36"`
	CampaignID uuid.UUID      `json:"campaignId" gorm:"size:36;index:idx_kill_campaign_id"`
	Time       time.Time      `json:"time" gorm:"index:idx_kill_time"`
	VictimID   string         `json:"victimId" gorm:"size:64;index:idx_kill_victim_id"`
	VictimSide string         `json:"victimSide" gorm:"size:16"`
	VictimType string         `json:"victimType" gorm:"size:127"`
	Position   geom.Point     `json:"position"` // EPSG:3857 with altitude as Z; empty when never tracked
	KillerID   string         `json:"killerId" gorm:"size:64;index:idx_kill_killer_id"`
	KillerSide string         `json:"killerSide" gorm:"size:16"`
	Weapon     string         `json:"weapon" gorm:"size:255"`
	ShotCount  int            `json:"shotCount"`
	Shots      datatypes.JSON `json:"shots"`
}

func (*KillRecord) TableName() string {
	return "kill_records"
}

// Performance is a periodic snapshot of engine sizes.
type Performance struct {
	Time                time.Time `json:"time" gorm:"index:idx_time"`
	CampaignID          uuid.UUID `json:"campaignId" gorm:"size:36;index:idx_performance_campaign_id"`
	Ticks               int       `json:"ticks"`
	Units               int       `json:"units"`
	VisibilityEntries   int       `json:"visibilityEntries"`
	VisibilityHits      uint64    `json:"visibilityHits"`
	VisibilityMisses    uint64    `json:"visibilityMisses"`
	VisibilityEvicted   uint64    `json:"visibilityEvicted"`
	Tracks              int       `json:"tracks"`
	PendingShots        int       `json:"pendingShots"`
	PendingDeaths       int       `json:"pendingDeaths"`
	BufferedSensors     int       `json:"bufferedSensors"`
	BufferedTargets     int       `json:"bufferedTargets"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*Performance) TableName() string {
	return "performances"
}
