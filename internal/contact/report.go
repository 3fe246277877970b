package contact

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/OCAP2/awacs/internal/geo"
	"github.com/OCAP2/awacs/pkg/core"
)

const (
	metresPerNauticalMile = 1852.0
	feetPerMetre          = 3.28084
)

// BraaLine is one contact in a report.
//
// Range is planar metres and Altitude is kilometres in Metric; nautical miles
// and thousands of feet in Imperial. Bearing and Heading are radians
// clockwise from north.
type BraaLine struct {
	TargetID core.EntityID
	Bearing  float64
	Range    float64
	Altitude float64
	Heading  float64
	Age      time.Duration
	Units    core.UnitSystem
}

// observer returns the state for id, creating it with reports on and metric units.
func (t *Tracker) observer(id core.EntityID) *ObserverState {
	o, ok := t.observers[id]
	if !ok {
		o = &ObserverState{ReportsEnabled: true, Units: core.Metric}
		t.observers[id] = o
	}
	return o
}

// Observer returns a copy of the observer's state, if one exists.
func (t *Tracker) Observer(id core.EntityID) (ObserverState, bool) {
	o, ok := t.observers[id]
	if !ok {
		return ObserverState{}, false
	}
	return *o, true
}

// Toggle flips reports for the observer and returns the new setting.
func (t *Tracker) Toggle(id core.EntityID) bool {
	o := t.observer(id)
	o.ReportsEnabled = !o.ReportsEnabled
	return o.ReportsEnabled
}

// SetUnits sets the observer's unit system.
func (t *Tracker) SetUnits(id core.EntityID, u core.UnitSystem) {
	t.observer(id).Units = u
}

// Report builds the observer's picture from its side's tracks.
//
// Only tracks seen within MaxAge are listed, friendly or hostile per
// wantFriendly, closest first and at most MaxLines. The report is withheld
// unless ReportInterval has passed since the last one, the closest contact
// is within ImmediateRange, or it is within CloseRange and CloseInterval has
// passed. A withheld or empty report leaves LastReport unchanged.
func (t *Tracker) Report(now time.Time, wantFriendly bool, observerID core.EntityID, side core.Side, pos core.Position3D) []BraaLine {
	table, ok := t.tracks[side]
	if !ok {
		return nil
	}

	o := t.observer(observerID)
	if !o.ReportsEnabled {
		return nil
	}

	lines := make([]BraaLine, 0, len(table))
	for _, tr := range table {
		age := now.Sub(tr.LastSeen)
		if age > t.cfg.MaxAge {
			continue
		}
		if (tr.TargetSide == side) != wantFriendly {
			continue
		}
		lines = append(lines, BraaLine{
			TargetID: tr.TargetID,
			Bearing:  geo.Bearing(tr.Position.X-pos.X, tr.Position.Y-pos.Y),
			Range:    pos.PlanarDistance(tr.Position),
			Altitude: tr.Position.Z / 1000,
			// Heading is taken from the contact's position vector, not its
			// velocity. Kept as-is until the intended behaviour is settled.
			Heading: geo.Bearing(tr.Position.X, tr.Position.Y),
			Age:     age,
			Units:   core.Metric,
		})
	}
	if len(lines) == 0 {
		return nil
	}

	slices.SortFunc(lines, func(a, b BraaLine) int {
		if c := cmp.Compare(a.Range, b.Range); c != 0 {
			return c
		}
		return cmp.Compare(a.TargetID, b.TargetID)
	})
	if len(lines) > t.cfg.MaxLines {
		lines = lines[:t.cfg.MaxLines]
	}

	if !t.shouldEmit(now.Sub(o.LastReport), lines[0].Range) {
		t.suppressed.Add(context.Background(), 1, sideAttr(side))
		return nil
	}
	o.LastReport = now
	t.emitted.Add(context.Background(), 1, sideAttr(side))

	if o.Units == core.Imperial {
		for i := range lines {
			lines[i].Range /= metresPerNauticalMile
			lines[i].Altitude *= feetPerMetre
			lines[i].Units = core.Imperial
		}
	}
	return lines
}

func (t *Tracker) shouldEmit(elapsed time.Duration, closest float64) bool {
	switch {
	case elapsed >= t.cfg.ReportInterval:
		return true
	case closest <= t.cfg.ImmediateRange:
		return true
	case closest <= t.cfg.CloseRange && elapsed >= t.cfg.CloseInterval:
		return true
	}
	return false
}

// FormatLine renders a line the way the report panel shows it, e.g.
// "045/16.2km/8.2km/0:45" or "045/8.7nm/27.0kft/0:45".
func FormatLine(l BraaLine) string {
	rangeVal, rangeUnit, altUnit := l.Range/1000, "km", "km"
	if l.Units == core.Imperial {
		rangeVal, rangeUnit, altUnit = l.Range, "nm", "kft"
	}
	secs := int(math.Round(l.Age.Seconds()))
	return fmt.Sprintf("%03d/%.1f%s/%.1f%s/%d:%02d",
		geo.CompassCode(l.Bearing),
		rangeVal, rangeUnit,
		l.Altitude, altUnit,
		secs/60, secs%60,
	)
}
