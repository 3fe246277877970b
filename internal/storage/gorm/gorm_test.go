package gormstorage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/OCAP2/awacs/internal/database"
	"github.com/OCAP2/awacs/internal/model"
	"github.com/OCAP2/awacs/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.GetSqliteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Dependencies{DB: newTestDB(t), Logger: zerolog.Nop()}, Config{FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func kill(victim string, at time.Time) *core.KillRecord {
	pos := core.Position3D{X: 100, Y: 200, Z: 3000}
	return &core.KillRecord{
		ID:         uuid.New(),
		VictimID:   core.EntityID(victim),
		VictimSide: core.SideEast,
		Time:       at,
		Position:   &pos,
		Shots: []core.Shot{{
			ShooterID:   "5",
			ShooterSide: core.SideWest,
			TargetID:    core.EntityID(victim),
			Time:        at.Add(-time.Second),
			Hit:         true,
			Weapon:      &core.WeaponIdentity{Weapon: "Titan AA"},
		}},
	}
}

func TestInit_NoDatabase(t *testing.T) {
	b := New(Dependencies{Logger: zerolog.Nop()}, Config{})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestInit_OpenFailure(t *testing.T) {
	b := New(Dependencies{
		Open:   func() (*gorm.DB, error) { return nil, errors.New("refused") },
		Logger: zerolog.Nop(),
	}, Config{})
	assert.EqualError(t, b.Init(), "refused")
}

func TestInit_OpensLazily(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{
		Open:   func() (*gorm.DB, error) { return db, nil },
		Logger: zerolog.Nop(),
	}, Config{FlushInterval: time.Hour})
	require.Nil(t, b.DB())
	require.NoError(t, b.Init())
	defer b.Close()
	assert.Same(t, db, b.DB())
}

func TestRecordKill_QueuesUntilFlush(t *testing.T) {
	b := newTestBackend(t)

	c := &core.Campaign{ID: uuid.New(), Name: "Northern Watch", Latitude: 39.5, Longitude: 25.1, StartTime: t0}
	require.NoError(t, b.StartCampaign(c))

	k := kill("31", t0.Add(time.Minute))
	k.CampaignID = c.ID
	require.NoError(t, b.RecordKill(k))
	require.NoError(t, b.RecordKill(kill("32", t0.Add(2*time.Minute))))
	assert.Equal(t, 2, b.Pending())

	var count int64
	require.NoError(t, b.DB().Model(&model.KillRecord{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, b.Flush())
	assert.Zero(t, b.Pending())
	require.NoError(t, b.DB().Model(&model.KillRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var row model.KillRecord
	require.NoError(t, b.DB().First(&row, "victim_id = ?", "31").Error)
	assert.Equal(t, c.ID, row.CampaignID)
	assert.Equal(t, "5", row.KillerID)
	assert.Equal(t, "Titan AA", row.Weapon)
	assert.False(t, row.Position.IsEmpty())
}

func TestEndCampaign_FlushesAndStampsEnd(t *testing.T) {
	b := newTestBackend(t)

	c := &core.Campaign{ID: uuid.New(), Name: "Short", StartTime: t0}
	require.NoError(t, b.StartCampaign(c))
	require.NoError(t, b.RecordKill(kill("31", t0)))
	require.NoError(t, b.EndCampaign())

	assert.Zero(t, b.Pending())
	var row model.Campaign
	require.NoError(t, b.DB().First(&row, "id = ?", c.ID).Error)
	assert.Equal(t, "Short", row.Name)
	assert.True(t, row.EndTime.Valid)
}

func TestStartCampaign_InvalidOrigin(t *testing.T) {
	b := newTestBackend(t)
	err := b.StartCampaign(&core.Campaign{ID: uuid.New(), Name: "Pole", Latitude: 89.9})
	assert.Error(t, err)
}

func TestRecordKill_QueueFull(t *testing.T) {
	b := New(Dependencies{DB: newTestDB(t), Logger: zerolog.Nop()}, Config{QueueLimit: 1})
	require.NoError(t, b.RecordKill(kill("1", t0)))
	assert.ErrorIs(t, b.RecordKill(kill("2", t0)), ErrQueueFull)
}

func TestWriteLoop_FlushesPeriodically(t *testing.T) {
	b := New(Dependencies{DB: newTestDB(t), Logger: zerolog.Nop()}, Config{FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.RecordKill(kill("31", t0)))
	assert.Eventually(t, func() bool { return b.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Positive(t, b.LastWriteDuration())
}

func TestClose_FlushesRemaining(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db, Logger: zerolog.Nop()}, Config{FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	require.NoError(t, b.RecordKill(kill("31", t0)))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.KillRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
