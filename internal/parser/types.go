package parser

import (
	"time"

	"github.com/OCAP2/awacs/pkg/core"
)

// ShotArgs is a parsed :FIRED: record. Sides and target type are not part of
// the wire record; the worker stamps them from the unit cache.
type ShotArgs struct {
	Time      time.Time
	ShooterID core.EntityID
	TargetID  core.EntityID
	Weapon    *core.WeaponIdentity
}

// HitArgs is a parsed :HIT: record.
type HitArgs struct {
	ShotArgs
	Lethal bool
}

// DeathArgs is a parsed :KILLED: record.
type DeathArgs struct {
	Time     time.Time
	TargetID core.EntityID
}

// ReportRequest is a parsed :REPORT: record.
type ReportRequest struct {
	Time       time.Time
	Friendly   bool
	ObserverID core.EntityID
	Side       core.Side
	Position   core.Position3D
}

// UnitsRequest is a parsed :REPORTS:UNITS: record.
type UnitsRequest struct {
	ObserverID core.EntityID
	Units      core.UnitSystem
}
