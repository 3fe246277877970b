// Package ledger correlates weapon fire and hits with later deaths and
// produces attributed kills.
package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/OCAP2/awacs/pkg/core"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds ledger settings. Zero fields take the defaults.
type Config struct {
	// Window is how long shot history on a living target is kept.
	Window time.Duration `json:"window" mapstructure:"window"`
	// GCInterval is the minimum time between sweeps.
	GCInterval time.Duration `json:"gcInterval" mapstructure:"gcInterval"`
}

// DefaultConfig returns a 30 minute window swept every 30 minutes.
func DefaultConfig() Config {
	return Config{
		Window:     30 * time.Minute,
		GCInterval: 30 * time.Minute,
	}
}

// SideResolver looks up a unit's side from registered metadata.
type SideResolver func(id core.EntityID) (core.Side, bool)

// ShotEvent is a weapon fired at a target.
type ShotEvent struct {
	Weapon      *core.WeaponIdentity
	ShooterID   core.EntityID
	ShooterSide core.Side
	TargetID    core.EntityID
	TargetType  string
	TargetSide  core.Side
	Time        time.Time
}

// HitEvent is a confirmed hit on a target.
type HitEvent struct {
	ShotEvent
	Lethal bool
}

// AttributedKill is a death with every shot on file against the victim.
type AttributedKill struct {
	VictimID   core.EntityID
	VictimSide core.Side
	Time       time.Time
	Shots      []core.Shot
}

// Pending is a snapshot of ledger size.
type Pending struct {
	Targets int
	Shots   int
	Deaths  int
}

// Ledger holds shot history per target and pending death marks. It is not
// safe for concurrent use; the owner serializes access.
type Ledger struct {
	cfg     Config
	resolve SideResolver

	shots  map[core.EntityID][]core.Shot
	deaths map[core.EntityID]time.Time
	lastGC time.Time

	attributed metric.Int64Counter
	expired    metric.Int64Counter
	discarded  metric.Int64Counter
}

// New creates a ledger. resolver and m may be nil.
func New(cfg Config, resolver SideResolver, m metric.Meter) (*Ledger, error) {
	d := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = d.GCInterval
	}
	if m == nil {
		m = noop.Meter{}
	}

	l := &Ledger{
		cfg:     cfg,
		resolve: resolver,
		shots:   make(map[core.EntityID][]core.Shot),
		deaths:  make(map[core.EntityID]time.Time),
	}

	var err error
	if l.attributed, err = m.Int64Counter("ledger.kills.attributed",
		metric.WithDescription("Kills drained with their shot history")); err != nil {
		return nil, fmt.Errorf("creating attributed counter: %w", err)
	}
	if l.expired, err = m.Int64Counter("ledger.shots.expired",
		metric.WithDescription("Shots dropped by the sweep")); err != nil {
		return nil, fmt.Errorf("creating expired counter: %w", err)
	}
	if l.discarded, err = m.Int64Counter("ledger.hits.discarded",
		metric.WithDescription("Hits on targets already marked dead")); err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}

	return l, nil
}

func (e ShotEvent) shot(hit bool) core.Shot {
	return core.Shot{
		Weapon:      e.Weapon,
		ShooterID:   e.ShooterID,
		ShooterSide: e.ShooterSide,
		TargetID:    e.TargetID,
		TargetType:  e.TargetType,
		TargetSide:  e.TargetSide,
		Time:        e.Time,
		Hit:         hit,
	}
}

// RecordShot appends a shot to the target's history.
func (l *Ledger) RecordShot(e ShotEvent) {
	l.shots[e.TargetID] = append(l.shots[e.TargetID], e.shot(false))
}

// RecordHit appends a confirmed hit unless the target is already marked
// dead. A lethal hit also marks the death.
func (l *Ledger) RecordHit(e HitEvent) {
	if _, dead := l.deaths[e.TargetID]; dead {
		l.discarded.Add(context.Background(), 1)
		return
	}
	l.shots[e.TargetID] = append(l.shots[e.TargetID], e.shot(true))
	if e.Lethal {
		l.RecordDeath(e.TargetID, e.Time)
	}
}

// RecordDeath marks the target dead at t. Only the first mark counts; it
// reports whether this call inserted it.
func (l *Ledger) RecordDeath(id core.EntityID, t time.Time) bool {
	if _, ok := l.deaths[id]; ok {
		return false
	}
	l.deaths[id] = t
	return true
}

// DrainDeaths returns one AttributedKill per death mark, ordered by time of
// death, and forgets those targets. When GCInterval has passed since the last
// sweep it also drops shots older than Window from living targets.
func (l *Ledger) DrainDeaths(now time.Time) []AttributedKill {
	var kills []AttributedKill
	if len(l.deaths) > 0 {
		kills = make([]AttributedKill, 0, len(l.deaths))
		for id, t := range l.deaths {
			shots := l.shots[id]
			kills = append(kills, AttributedKill{
				VictimID:   id,
				VictimSide: l.victimSide(id, shots),
				Time:       t,
				Shots:      shots,
			})
			delete(l.shots, id)
		}
		clear(l.deaths)

		slices.SortFunc(kills, func(a, b AttributedKill) int {
			if c := a.Time.Compare(b.Time); c != 0 {
				return c
			}
			return cmp.Compare(a.VictimID, b.VictimID)
		})
		l.attributed.Add(context.Background(), int64(len(kills)))
	}

	if l.lastGC.IsZero() || now.Sub(l.lastGC) >= l.cfg.GCInterval {
		l.sweep(now)
	}

	return kills
}

// victimSide prefers registered metadata, then the side recorded on the
// first shot fired across sides.
func (l *Ledger) victimSide(id core.EntityID, shots []core.Shot) core.Side {
	if l.resolve != nil {
		if s, ok := l.resolve(id); ok && s != core.SideUnknown {
			return s
		}
	}
	for _, s := range shots {
		if s.TargetSide != core.SideUnknown && s.ShooterSide != s.TargetSide {
			return s.TargetSide
		}
	}
	return core.SideUnknown
}

func (l *Ledger) sweep(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	var dropped int
	for id, shots := range l.shots {
		kept := slices.DeleteFunc(shots, func(s core.Shot) bool {
			return s.Time.Before(cutoff)
		})
		dropped += len(shots) - len(kept)
		if len(kept) == 0 {
			delete(l.shots, id)
			continue
		}
		l.shots[id] = kept
	}
	l.lastGC = now
	if dropped > 0 {
		l.expired.Add(context.Background(), int64(dropped))
	}
}

// Pending returns the current table sizes.
func (l *Ledger) Pending() Pending {
	p := Pending{Targets: len(l.shots), Deaths: len(l.deaths)}
	for _, s := range l.shots {
		p.Shots += len(s)
	}
	return p
}

// History returns a copy of the shots on file against the target.
func (l *Ledger) History(id core.EntityID) []core.Shot {
	return slices.Clone(l.shots[id])
}
