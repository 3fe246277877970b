// Package contact fuses per-tick sensor detections into per-side track
// tables and renders BRAA reports for individual observers.
package contact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/OCAP2/awacs/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Visibility answers line-of-sight queries. *visibility.Cache satisfies it.
type Visibility interface {
	IsVisible(distanceHint float64, a, b core.Position3D) (bool, error)
}

// HeightProvider returns terrain height at a map position.
type HeightProvider interface {
	HeightAt(p core.Position2D) (float64, error)
}

// Sensor is a ground radar contributing to its side's picture.
type Sensor struct {
	Position core.Position2D
	Side     core.Side
	Range    float64
}

// Target is an airborne candidate for detection.
type Target struct {
	ID       core.EntityID
	Side     core.Side
	Position core.Position3D
	Velocity core.Velocity3D
}

// Track is a side's latest fused detection of a target.
type Track struct {
	TargetID   core.EntityID
	Position   core.Position3D
	Velocity   core.Velocity3D
	LastSeen   time.Time
	TargetSide core.Side
}

// ObserverState holds one observer's report preferences.
type ObserverState struct {
	ReportsEnabled bool
	Units          core.UnitSystem
	LastReport     time.Time
}

// Config holds tracker settings. Zero fields take the defaults.
type Config struct {
	MaxAge         time.Duration `json:"maxAge" mapstructure:"maxAge"`
	MaxLines       int           `json:"maxLines" mapstructure:"maxLines"`
	MastHeight     float64       `json:"sensorMastHeight" mapstructure:"sensorMastHeight"`
	ReportInterval time.Duration `json:"reportInterval" mapstructure:"reportInterval"`
	CloseInterval  time.Duration `json:"closeInterval" mapstructure:"closeInterval"`
	ImmediateRange float64       `json:"immediateRange" mapstructure:"immediateRange"`
	CloseRange     float64       `json:"closeRange" mapstructure:"closeRange"`
}

// DefaultConfig returns the standard report windows and limits.
func DefaultConfig() Config {
	return Config{
		MaxAge:         120 * time.Second,
		MaxLines:       10,
		MastHeight:     10,
		ReportInterval: 60 * time.Second,
		CloseInterval:  30 * time.Second,
		ImmediateRange: 20_000,
		CloseRange:     40_000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.MaxLines <= 0 {
		c.MaxLines = d.MaxLines
	}
	if c.MastHeight < 0 {
		c.MastHeight = 0
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = d.ReportInterval
	}
	if c.CloseInterval <= 0 {
		c.CloseInterval = d.CloseInterval
	}
	if c.ImmediateRange <= 0 {
		c.ImmediateRange = d.ImmediateRange
	}
	if c.CloseRange <= 0 {
		c.CloseRange = d.CloseRange
	}
	return c
}

// RefreshResult counts what one Refresh did.
type RefreshResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Tracker owns the track and observer tables. It is not safe for concurrent
// use; the owner serializes access.
type Tracker struct {
	cfg     Config
	vis     Visibility
	heights HeightProvider

	tracks    map[core.Side]map[core.EntityID]*Track
	observers map[core.EntityID]*ObserverState

	updated    metric.Int64Counter
	emitted    metric.Int64Counter
	suppressed metric.Int64Counter
}

// New creates a tracker. A nil meter disables metrics.
func New(cfg Config, vis Visibility, heights HeightProvider, m metric.Meter) (*Tracker, error) {
	if vis == nil || heights == nil {
		return nil, errors.New("contact: visibility and height provider are required")
	}
	if m == nil {
		m = noop.Meter{}
	}

	t := &Tracker{
		cfg:       cfg.withDefaults(),
		vis:       vis,
		heights:   heights,
		tracks:    make(map[core.Side]map[core.EntityID]*Track),
		observers: make(map[core.EntityID]*ObserverState),
	}

	var err error
	if t.updated, err = m.Int64Counter("contact.tracks.updated",
		metric.WithDescription("Track writes during refresh")); err != nil {
		return nil, fmt.Errorf("creating track counter: %w", err)
	}
	if t.emitted, err = m.Int64Counter("contact.reports.emitted",
		metric.WithDescription("Reports delivered to observers")); err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}
	if t.suppressed, err = m.Int64Counter("contact.reports.suppressed",
		metric.WithDescription("Reports withheld by the throttle")); err != nil {
		return nil, fmt.Errorf("creating suppressed counter: %w", err)
	}

	return t, nil
}

// Refresh runs every sensor against every target for the tick at now.
//
// The first sensor of a side that sees a target wins the tick; later sensors
// of that side are not consulted for it. A failed height or line-of-sight
// query skips only that sensor or pair, and the failures are joined into the
// returned error.
func (t *Tracker) Refresh(now time.Time, sensors []Sensor, targets []Target) (RefreshResult, error) {
	var (
		res  RefreshResult
		errs []error
	)

	for _, s := range sensors {
		h, err := t.heights.HeightAt(s.Position)
		if err != nil {
			res.Skipped++
			errs = append(errs, fmt.Errorf("sensor at %.0f,%.0f: height: %w", s.Position.X, s.Position.Y, err))
			continue
		}
		origin := s.Position.At(h + t.cfg.MastHeight)
		rangeSq := s.Range * s.Range

		for _, tgt := range targets {
			if tr, ok := t.tracks[s.Side][tgt.ID]; ok && tr.LastSeen.Equal(now) {
				continue
			}

			distSq := origin.DistanceSquared(tgt.Position)
			if distSq > rangeSq {
				continue
			}

			visible, err := t.vis.IsVisible(math.Sqrt(distSq), origin, tgt.Position)
			if err != nil {
				res.Skipped++
				errs = append(errs, fmt.Errorf("sensor at %.0f,%.0f to %s: %w", s.Position.X, s.Position.Y, tgt.ID, err))
				continue
			}
			if !visible {
				continue
			}

			t.upsert(s.Side, tgt, now)
			res.Updated++
		}
	}

	if res.Updated > 0 {
		t.updated.Add(context.Background(), int64(res.Updated))
	}
	return res, errors.Join(errs...)
}

func (t *Tracker) upsert(side core.Side, tgt Target, now time.Time) {
	table, ok := t.tracks[side]
	if !ok {
		table = make(map[core.EntityID]*Track)
		t.tracks[side] = table
	}
	tr, ok := table[tgt.ID]
	if !ok {
		tr = &Track{TargetID: tgt.ID}
		table[tgt.ID] = tr
	}
	tr.Position = tgt.Position
	tr.Velocity = tgt.Velocity
	tr.LastSeen = now
	tr.TargetSide = tgt.Side
}

// Track returns a copy of side's track on target.
func (t *Tracker) Track(side core.Side, target core.EntityID) (Track, bool) {
	tr, ok := t.tracks[side][target]
	if !ok {
		return Track{}, false
	}
	return *tr, true
}

// LastKnown returns the most recent track of target held by any side.
func (t *Tracker) LastKnown(target core.EntityID) (Track, bool) {
	var (
		best  Track
		found bool
	)
	for _, table := range t.tracks {
		tr, ok := table[target]
		if !ok {
			continue
		}
		if !found || tr.LastSeen.After(best.LastSeen) {
			best, found = *tr, true
		}
	}
	return best, found
}

// TrackCount returns the number of tracks held per side.
func (t *Tracker) TrackCount() map[core.Side]int {
	out := make(map[core.Side]int, len(t.tracks))
	for side, table := range t.tracks {
		out[side] = len(table)
	}
	return out
}

func sideAttr(s core.Side) metric.AddOption {
	return metric.WithAttributes(attribute.String("side", s.String()))
}
