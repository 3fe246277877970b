package ledger

import (
	"testing"
	"time"

	"github.com/OCAP2/awacs/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var rifle = &core.WeaponIdentity{Weapon: "arifle_MX_F", Magazine: "30Rnd_65x39_caseless_mag"}

func newTestLedger(t *testing.T, resolver SideResolver) *Ledger {
	t.Helper()
	l, err := New(Config{}, resolver, nil)
	require.NoError(t, err)
	return l
}

func shotAt(target core.EntityID, shooter core.EntityID, at time.Time) ShotEvent {
	return ShotEvent{
		Weapon:      rifle,
		ShooterID:   shooter,
		ShooterSide: core.SideWest,
		TargetID:    target,
		TargetType:  "O_Soldier_F",
		TargetSide:  core.SideEast,
		Time:        at,
	}
}

func TestDrainDeaths_AttributesAllShots(t *testing.T) {
	l := newTestLedger(t, nil)

	s1 := shotAt("victim", "alpha", t0)
	s2 := shotAt("victim", "bravo", t0.Add(2*time.Second))
	l.RecordShot(s1)
	l.RecordShot(s2)
	l.RecordHit(HitEvent{ShotEvent: shotAt("victim", "bravo", t0.Add(3*time.Second))})
	require.True(t, l.RecordDeath("victim", t0.Add(4*time.Second)))

	kills := l.DrainDeaths(t0.Add(5 * time.Second))

	want := []AttributedKill{{
		VictimID:   "victim",
		VictimSide: core.SideEast,
		Time:       t0.Add(4 * time.Second),
		Shots: []core.Shot{
			s1.shot(false),
			s2.shot(false),
			shotAt("victim", "bravo", t0.Add(3*time.Second)).shot(true),
		},
	}}
	if diff := cmp.Diff(want, kills); diff != "" {
		t.Errorf("DrainDeaths mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Pending{}, l.Pending())
	assert.Empty(t, l.History("victim"))
}

func TestDrainDeaths_DeathWithoutShots(t *testing.T) {
	l := newTestLedger(t, nil)
	l.RecordDeath("crashed", t0)

	kills := l.DrainDeaths(t0)
	require.Len(t, kills, 1)
	assert.Equal(t, core.EntityID("crashed"), kills[0].VictimID)
	assert.Equal(t, core.SideUnknown, kills[0].VictimSide)
	assert.Empty(t, kills[0].Shots)
}

func TestDrainDeaths_OrderedByTimeThenID(t *testing.T) {
	l := newTestLedger(t, nil)
	l.RecordDeath("c", t0.Add(2*time.Second))
	l.RecordDeath("b", t0)
	l.RecordDeath("a", t0)

	kills := l.DrainDeaths(t0.Add(time.Minute))
	require.Len(t, kills, 3)

	got := []core.EntityID{kills[0].VictimID, kills[1].VictimID, kills[2].VictimID}
	assert.Equal(t, []core.EntityID{"a", "b", "c"}, got)
}

func TestDrainDeaths_EmptyWhenNothingDied(t *testing.T) {
	l := newTestLedger(t, nil)
	l.RecordShot(shotAt("alive", "alpha", t0))

	assert.Empty(t, l.DrainDeaths(t0))
	assert.Len(t, l.History("alive"), 1)
}

func TestRecordDeath_FirstWins(t *testing.T) {
	l := newTestLedger(t, nil)

	assert.True(t, l.RecordDeath("victim", t0))
	assert.False(t, l.RecordDeath("victim", t0.Add(time.Second)))

	kills := l.DrainDeaths(t0.Add(time.Minute))
	require.Len(t, kills, 1)
	assert.Equal(t, t0, kills[0].Time)
}

func TestRecordHit_DiscardedAfterDeath(t *testing.T) {
	l := newTestLedger(t, nil)

	l.RecordHit(HitEvent{ShotEvent: shotAt("victim", "alpha", t0), Lethal: true})
	l.RecordHit(HitEvent{ShotEvent: shotAt("victim", "bravo", t0.Add(time.Second))})

	assert.Len(t, l.History("victim"), 1)

	kills := l.DrainDeaths(t0.Add(time.Minute))
	require.Len(t, kills, 1)
	require.Len(t, kills[0].Shots, 1)
	assert.Equal(t, core.EntityID("alpha"), kills[0].Shots[0].ShooterID)
	assert.True(t, kills[0].Shots[0].Hit)
}

func TestRecordShot_AcceptedAfterDeath(t *testing.T) {
	l := newTestLedger(t, nil)
	l.RecordDeath("victim", t0)
	l.RecordShot(shotAt("victim", "alpha", t0.Add(time.Second)))

	kills := l.DrainDeaths(t0.Add(time.Minute))
	require.Len(t, kills, 1)
	assert.Len(t, kills[0].Shots, 1)
}

func TestRecordHit_LethalMarksDeath(t *testing.T) {
	l := newTestLedger(t, nil)
	l.RecordHit(HitEvent{ShotEvent: shotAt("victim", "alpha", t0), Lethal: true})

	assert.Equal(t, Pending{Targets: 1, Shots: 1, Deaths: 1}, l.Pending())
}

func TestVictimSide_ResolverWins(t *testing.T) {
	resolver := func(id core.EntityID) (core.Side, bool) {
		if id == "victim" {
			return core.SideIndependent, true
		}
		return core.SideUnknown, false
	}
	l := newTestLedger(t, resolver)
	l.RecordShot(shotAt("victim", "alpha", t0))
	l.RecordDeath("victim", t0.Add(time.Second))

	kills := l.DrainDeaths(t0.Add(time.Minute))
	require.Len(t, kills, 1)
	assert.Equal(t, core.SideIndependent, kills[0].VictimSide)
}

func TestVictimSide_FirstCrossSideShot(t *testing.T) {
	l := newTestLedger(t, nil)

	friendlyFire := shotAt("victim", "alpha", t0)
	friendlyFire.ShooterSide = core.SideEast
	l.RecordShot(friendlyFire)

	unknown := shotAt("victim", "bravo", t0.Add(time.Second))
	unknown.TargetSide = core.SideUnknown
	l.RecordShot(unknown)

	cross := shotAt("victim", "charlie", t0.Add(2*time.Second))
	cross.TargetSide = core.SideCivilian
	l.RecordShot(cross)

	later := shotAt("victim", "delta", t0.Add(3*time.Second))
	l.RecordShot(later)

	l.RecordDeath("victim", t0.Add(4*time.Second))
	kills := l.DrainDeaths(t0.Add(time.Minute))
	require.Len(t, kills, 1)
	assert.Equal(t, core.SideCivilian, kills[0].VictimSide)
}

func TestSweep_DropsExpiredShots(t *testing.T) {
	l := newTestLedger(t, nil)

	// First drain sets the sweep clock.
	l.DrainDeaths(t0)

	l.RecordShot(shotAt("old", "alpha", t0.Add(time.Minute)))
	l.RecordShot(shotAt("mixed", "alpha", t0.Add(time.Minute)))
	l.RecordShot(shotAt("mixed", "bravo", t0.Add(20*time.Minute)))

	// Not due yet: nothing is dropped even though the first shots are old
	// relative to this call.
	l.DrainDeaths(t0.Add(29 * time.Minute))
	assert.Equal(t, 3, l.Pending().Shots)

	// Due: cutoff is t0+2m, so shots at t0+1m go and t0+20m stays.
	l.DrainDeaths(t0.Add(32 * time.Minute))
	assert.Empty(t, l.History("old"))
	mixed := l.History("mixed")
	require.Len(t, mixed, 1)
	assert.Equal(t, core.EntityID("bravo"), mixed[0].ShooterID)
	assert.Equal(t, Pending{Targets: 1, Shots: 1}, l.Pending())
}

func TestSweep_DeadTargetsKeepOldShots(t *testing.T) {
	l := newTestLedger(t, nil)
	l.DrainDeaths(t0)

	l.RecordShot(shotAt("victim", "alpha", t0.Add(time.Minute)))
	l.RecordDeath("victim", t0.Add(50*time.Minute))

	kills := l.DrainDeaths(t0.Add(60 * time.Minute))
	require.Len(t, kills, 1)
	assert.Len(t, kills[0].Shots, 1)
}

func TestNew_Defaults(t *testing.T) {
	l := newTestLedger(t, nil)
	assert.Equal(t, DefaultConfig(), l.cfg)

	custom, err := New(Config{Window: time.Minute, GCInterval: 2 * time.Minute}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, custom.cfg.Window)
	assert.Equal(t, 2*time.Minute, custom.cfg.GCInterval)
}
