// Package campaign owns the visibility cache, contact tracker and shot ledger
// for a running campaign and serializes every call into them.
package campaign

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/awacs/internal/cache"
	"github.com/OCAP2/awacs/internal/contact"
	"github.com/OCAP2/awacs/internal/ledger"
	"github.com/OCAP2/awacs/internal/queue"
	"github.com/OCAP2/awacs/internal/visibility"
	"github.com/OCAP2/awacs/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// KillSink receives attributed kills after a drain.
type KillSink interface {
	RecordKill(k *core.KillRecord) error
}

// Terrain answers both queries the engines need from the map.
type Terrain interface {
	visibility.Oracle
	contact.HeightProvider
}

// Config groups the engine settings.
type Config struct {
	Visibility visibility.Config
	Contact    contact.Config
	Ledger     ledger.Config
	// FrameLimit caps sensor and target records buffered between ticks.
	FrameLimit int
}

// Dependencies are the collaborators shared with the rest of the process.
type Dependencies struct {
	Terrain Terrain
	Units   *cache.UnitCache
	Meter   metric.Meter
	Logger  *slog.Logger
}

// Stats is a point-in-time snapshot for monitoring.
type Stats struct {
	Campaign        string
	Ticks           int
	Units           int
	Visibility      visibility.Stats
	Tracks          map[core.Side]int
	Ledger          ledger.Pending
	BufferedSensors int
	BufferedTargets int
}

// Coordinator is the single accessor for the engines. All methods are safe
// for concurrent use.
type Coordinator struct {
	mu   sync.Mutex
	cfg  Config
	deps Dependencies
	log  *slog.Logger

	vis     *visibility.Cache
	tracker *contact.Tracker
	ledger  *ledger.Ledger

	sensors *queue.Queue[contact.Sensor]
	targets *queue.Queue[contact.Target]

	session *Context
	ticks   cache.SafeCounter

	sinkMu sync.RWMutex
	sinks  []KillSink
}

// New creates a coordinator with fresh engines.
func New(cfg Config, deps Dependencies) (*Coordinator, error) {
	if deps.Terrain == nil {
		return nil, errors.New("campaign: terrain is required")
	}
	if deps.Units == nil {
		deps.Units = cache.NewUnitCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	c := &Coordinator{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.With("component", "campaign"),
		sensors: queue.New[contact.Sensor](cfg.FrameLimit),
		targets: queue.New[contact.Target](cfg.FrameLimit),
		session: NewContext(),
	}
	if err := c.resetLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// resetLocked replaces the engines with empty ones.
func (c *Coordinator) resetLocked() error {
	vis, err := visibility.New(c.deps.Terrain, c.cfg.Visibility, c.deps.Meter)
	if err != nil {
		return fmt.Errorf("creating visibility cache: %w", err)
	}
	tracker, err := contact.New(c.cfg.Contact, vis, c.deps.Terrain, c.deps.Meter)
	if err != nil {
		return fmt.Errorf("creating contact tracker: %w", err)
	}
	l, err := ledger.New(c.cfg.Ledger, c.deps.Units.Side, c.deps.Meter)
	if err != nil {
		return fmt.Errorf("creating shot ledger: %w", err)
	}
	c.vis, c.tracker, c.ledger = vis, tracker, l
	c.sensors.Clear()
	c.targets.Clear()
	c.ticks.Set(0)
	return nil
}

// AddSink registers a destination for drained kills.
func (c *Coordinator) AddSink(s KillSink) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Units returns the unit metadata cache.
func (c *Coordinator) Units() *cache.UnitCache {
	return c.deps.Units
}

// Campaign returns the running campaign, or nil.
func (c *Coordinator) Campaign() *core.Campaign {
	return c.session.Get()
}

// CampaignName is safe to call from log handlers while a method holds the
// engine lock.
func (c *Coordinator) CampaignName() string {
	return c.session.Name()
}

// Ticks returns the number of ticks run in this campaign.
func (c *Coordinator) Ticks() int {
	return c.ticks.Value()
}

// StartCampaign resets all engine state and unit metadata and begins a new
// session. A zero ID or StartTime is filled in.
func (c *Coordinator) StartCampaign(cp *core.Campaign) error {
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.StartTime.IsZero() {
		cp.StartTime = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resetLocked(); err != nil {
		return err
	}
	c.deps.Units.Reset()
	c.session.Set(cp)
	c.log.Info("Campaign started", "name", cp.Name, "id", cp.ID, "theatre", cp.Theatre)
	return nil
}

// EndCampaign drains outstanding deaths into the sinks and closes the session.
func (c *Coordinator) EndCampaign(now time.Time) ([]*core.KillRecord, error) {
	records, err := c.Drain(now)
	if cp := c.session.Get(); cp != nil {
		c.log.Info("Campaign ended", "name", cp.Name, "id", cp.ID, "ticks", c.ticks.Value())
	}
	c.session.Set(nil)
	return records, err
}

// RegisterUnit stores metadata the host announces for an entity.
func (c *Coordinator) RegisterUnit(u core.Unit) {
	c.deps.Units.Add(u)
}

// AddSensor buffers a sensor for the next tick.
func (c *Coordinator) AddSensor(s contact.Sensor) {
	if n := c.sensors.Push(s); n > 0 {
		c.log.Warn("Sensor buffer full, record dropped", "limit", c.cfg.FrameLimit)
	}
}

// AddTarget buffers a target for the next tick.
func (c *Coordinator) AddTarget(t contact.Target) {
	if n := c.targets.Push(t); n > 0 {
		c.log.Warn("Target buffer full, record dropped", "limit", c.cfg.FrameLimit)
	}
}

// Tick runs detection for everything buffered since the previous tick.
// Failed queries are logged and skipped.
func (c *Coordinator) Tick(now time.Time) contact.RefreshResult {
	sensors := c.sensors.Drain()
	targets := c.targets.Drain()

	c.mu.Lock()
	res, err := c.tracker.Refresh(now, sensors, targets)
	c.mu.Unlock()

	c.ticks.Inc()
	if err != nil {
		c.log.Warn("Detection queries failed", "skipped", res.Skipped, "error", err)
	}
	c.log.Debug("Tick processed",
		"sensors", len(sensors),
		"targets", len(targets),
		"updated", res.Updated,
		"skipped", res.Skipped)
	return res
}

// Report returns the observer's BRAA picture, or nil when withheld.
func (c *Coordinator) Report(now time.Time, wantFriendly bool, observer core.EntityID, side core.Side, pos core.Position3D) []contact.BraaLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Report(now, wantFriendly, observer, side, pos)
}

// Toggle flips reports for the observer.
func (c *Coordinator) Toggle(observer core.EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Toggle(observer)
}

// SetUnits sets the observer's unit system.
func (c *Coordinator) SetUnits(observer core.EntityID, u core.UnitSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.SetUnits(observer, u)
}

// shotEvent stamps ids with the registered sides and target type.
func (c *Coordinator) shotEvent(now time.Time, shooter, target core.EntityID, weapon *core.WeaponIdentity) ledger.ShotEvent {
	e := ledger.ShotEvent{
		Weapon:    weapon,
		ShooterID: shooter,
		TargetID:  target,
		Time:      now,
	}
	if u, ok := c.deps.Units.Get(shooter); ok {
		e.ShooterSide = u.Side
	}
	if u, ok := c.deps.Units.Get(target); ok {
		e.TargetSide = u.Side
		e.TargetType = u.Type
	}
	return e
}

// RecordShot logs a weapon fired at target.
func (c *Coordinator) RecordShot(now time.Time, shooter, target core.EntityID, weapon *core.WeaponIdentity) {
	e := c.shotEvent(now, shooter, target, weapon)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.RecordShot(e)
}

// RecordHit logs a confirmed hit; lethal hits also mark the death.
func (c *Coordinator) RecordHit(now time.Time, shooter, target core.EntityID, weapon *core.WeaponIdentity, lethal bool) {
	e := ledger.HitEvent{ShotEvent: c.shotEvent(now, shooter, target, weapon), Lethal: lethal}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.RecordHit(e)
}

// RecordDeath marks target dead and reports whether this was the first mark.
func (c *Coordinator) RecordDeath(now time.Time, target core.EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.RecordDeath(target, now)
}

// Drain attributes pending deaths and hands each record to every sink. A sink
// failure is logged and joined into the error; the other sinks still get the
// record.
func (c *Coordinator) Drain(now time.Time) ([]*core.KillRecord, error) {
	var campaignID uuid.UUID
	if cp := c.session.Get(); cp != nil {
		campaignID = cp.ID
	}

	c.mu.Lock()
	kills := c.ledger.DrainDeaths(now)
	records := make([]*core.KillRecord, 0, len(kills))
	for _, k := range kills {
		rec := &core.KillRecord{
			ID:         uuid.New(),
			CampaignID: campaignID,
			VictimID:   k.VictimID,
			VictimSide: k.VictimSide,
			Time:       k.Time,
			Shots:      k.Shots,
		}
		if tr, ok := c.tracker.LastKnown(k.VictimID); ok {
			pos := tr.Position
			rec.Position = &pos
		}
		if u, ok := c.deps.Units.Get(k.VictimID); ok {
			rec.VictimType = u.Type
		}
		records = append(records, rec)
	}
	c.mu.Unlock()

	if len(records) == 0 {
		return records, nil
	}

	c.sinkMu.RLock()
	sinks := c.sinks
	c.sinkMu.RUnlock()

	var errs []error
	for _, rec := range records {
		for _, s := range sinks {
			if err := s.RecordKill(rec); err != nil {
				c.log.Error("Failed to record kill", "victim", rec.VictimID, "sink", fmt.Sprintf("%T", s), "error", err)
				errs = append(errs, err)
			}
		}
	}
	c.log.Debug("Kills drained", "count", len(records))
	return records, errors.Join(errs...)
}

// Stats returns a snapshot of engine sizes and counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Campaign:        c.session.Name(),
		Ticks:           c.ticks.Value(),
		Units:           c.deps.Units.Len(),
		Visibility:      c.vis.Stats(),
		Tracks:          c.tracker.TrackCount(),
		Ledger:          c.ledger.Pending(),
		BufferedSensors: c.sensors.Len(),
		BufferedTargets: c.targets.Len(),
	}
}
