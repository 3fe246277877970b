package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/OCAP2/awacs/internal/campaign"
	"github.com/OCAP2/awacs/internal/contact"
	"github.com/OCAP2/awacs/internal/database"
	"github.com/OCAP2/awacs/internal/model"
	"github.com/OCAP2/awacs/internal/terrain"
	"github.com/OCAP2/awacs/pkg/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedTimer time.Duration

func (f fixedTimer) LastWriteDuration() time.Duration { return time.Duration(f) }

type recordingWriter struct {
	mu    sync.Mutex
	perfs []model.Performance
}

func (w *recordingWriter) WritePerformance(p model.Performance) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.perfs = append(w.perfs, p)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.perfs)
}

func newCoordinator(t *testing.T) *campaign.Coordinator {
	t.Helper()
	c, err := campaign.New(campaign.Config{FrameLimit: 10}, campaign.Dependencies{Terrain: terrain.Flat{}})
	require.NoError(t, err)
	return c
}

func TestSnapshot(t *testing.T) {
	c := newCoordinator(t)
	cp := &core.Campaign{Name: "Op Northern Watch"}
	require.NoError(t, c.StartCampaign(cp))

	c.RegisterUnit(core.Unit{ID: "viper1", Side: core.SideWest})
	c.AddSensor(contact.Sensor{Side: core.SideWest, Range: 50_000})
	c.AddTarget(contact.Target{ID: "mig", Side: core.SideEast, Position: core.Position3D{Y: 10_000, Z: 3000}})
	c.Tick(time.Unix(0, 0))
	c.RecordShot(time.Unix(1, 0), "viper1", "mig", nil)

	s := NewService(Dependencies{Coordinator: c, WriteTimer: fixedTimer(1500 * time.Microsecond)})
	now := time.Unix(5, 0)
	lines, perf := s.Snapshot(now)

	assert.Equal(t, now, perf.Time)
	assert.Equal(t, cp.ID, perf.CampaignID)
	assert.Equal(t, 1, perf.Ticks)
	assert.Equal(t, 1, perf.Units)
	assert.Equal(t, 1, perf.Tracks)
	assert.Equal(t, 1, perf.VisibilityEntries)
	assert.Equal(t, 1, perf.PendingShots)
	assert.InDelta(t, 1.5, perf.LastWriteDurationMs, 1e-6)

	require.Len(t, lines, 3)
	assert.Equal(t, "campaign: Op Northern Watch", lines[0])
	assert.Contains(t, lines[1], `"WEST": 1`)
	assert.Equal(t, "last write: 1.5ms", lines[2])
}

func TestStartStop_WritesSinks(t *testing.T) {
	c := newCoordinator(t)
	require.NoError(t, c.StartCampaign(&core.Campaign{Name: "Sampled"}))

	db, err := database.GetSqliteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Setup(db, zerolog.Nop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	dir := t.TempDir()
	w := &recordingWriter{}
	s := NewService(Dependencies{
		Coordinator: c,
		DB:          db,
		Writers:     []PerformanceWriter{w},
		StatusFile:  filepath.Join(dir, "status.txt"),
		Interval:    10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return w.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	var rows int64
	require.NoError(t, db.Model(&model.Performance{}).Count(&rows).Error)
	assert.GreaterOrEqual(t, rows, int64(2))

	status, err := os.ReadFile(filepath.Join(dir, "status.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(status), "campaign: Sampled")
}

func TestSample_SkipsWithoutCampaign(t *testing.T) {
	w := &recordingWriter{}
	s := NewService(Dependencies{Coordinator: newCoordinator(t), Writers: []PerformanceWriter{w}})
	s.sample(nil)
	assert.Zero(t, w.count())
}

func TestStart_BadStatusDir(t *testing.T) {
	s := NewService(Dependencies{Coordinator: newCoordinator(t), StatusFile: filepath.Join(t.TempDir(), "missing", "status.txt")})
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}
