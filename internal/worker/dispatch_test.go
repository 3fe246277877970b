package worker

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/awacs/internal/campaign"
	"github.com/OCAP2/awacs/internal/contact"
	"github.com/OCAP2/awacs/internal/dispatcher"
	"github.com/OCAP2/awacs/internal/parser"
	"github.com/OCAP2/awacs/internal/terrain"
	"github.com/OCAP2/awacs/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) Debug(msg string, keysAndValues ...any) { l.add(msg) }
func (l *mockLogger) Info(msg string, keysAndValues ...any)  { l.add(msg) }
func (l *mockLogger) Error(msg string, keysAndValues ...any) { l.add(msg) }

func (l *mockLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	mu        sync.Mutex
	started   []*core.Campaign
	ended     int
	kills     []*core.KillRecord
	endErr    error
	writeTime time.Duration
}

func (b *mockBackend) Init() error  { return nil }
func (b *mockBackend) Close() error { return nil }

func (b *mockBackend) StartCampaign(c *core.Campaign) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = append(b.started, c)
	return nil
}

func (b *mockBackend) EndCampaign() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended++
	return b.endErr
}

func (b *mockBackend) RecordKill(k *core.KillRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kills = append(b.kills, k)
	return nil
}

func (b *mockBackend) LastWriteDuration() time.Duration { return b.writeTime }

func (b *mockBackend) killCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.kills)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	d       *dispatcher.Dispatcher
	coord   *campaign.Coordinator
	backend *mockBackend
	logs    *lockedBuffer
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	coord, err := campaign.New(campaign.Config{FrameLimit: 100}, campaign.Dependencies{Terrain: terrain.Flat{}})
	require.NoError(t, err)

	backend := &mockBackend{}
	coord.AddSink(backend)

	d, err := dispatcher.New(&mockLogger{}, nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	m := NewManager(Dependencies{
		Coordinator: coord,
		Parser:      parser.NewParser(logger),
		Logger:      logger,
		Backend:     backend,
	})
	m.RegisterHandlers(d)

	return &fixture{d: d, coord: coord, backend: backend, logs: logs, manager: m}
}

func (f *fixture) dispatch(t *testing.T, cmd string, args ...string) any {
	t.Helper()
	res, err := f.d.Dispatch(dispatcher.Event{Command: cmd, Args: args, Timestamp: time.Unix(1000, 0).UTC()})
	require.NoError(t, err, cmd)
	return res
}

func TestRegisterHandlers_AllCommands(t *testing.T) {
	f := newFixture(t)

	want := []string{
		":AIR:", ":CAMPAIGN:END:", ":CAMPAIGN:START:", ":DRAIN:", ":FIRED:", ":HIT:",
		":KILLED:", ":NEW:UNIT:", ":REPORT:", ":REPORTS:TOGGLE:", ":REPORTS:UNITS:",
		":SENSOR:", ":STATUS:", ":TICK:",
	}
	assert.Equal(t, want, f.d.Commands())
}

func TestTickAndReport(t *testing.T) {
	f := newFixture(t)

	f.dispatch(t, ":SENSOR:", "0,0", "WEST", "50000")
	f.dispatch(t, ":AIR:", "mig", "EAST", "0,30000,3000")
	res := f.dispatch(t, ":TICK:", "0")
	assert.Equal(t, contact.RefreshResult{Updated: 1}, res)

	lines := f.dispatch(t, ":REPORT:", "0", "false", "viper1", "WEST", "0,0,15")
	assert.Equal(t, []string{"000/30.0km/3.0km/0:00"}, lines)

	// Throttled: 10s later with nothing inside 20km.
	lines = f.dispatch(t, ":REPORT:", "10", "false", "viper1", "WEST", "0,0,15")
	assert.Empty(t, lines)

	assert.Equal(t, false, f.dispatch(t, ":REPORTS:TOGGLE:", "viper1"))
	f.dispatch(t, ":REPORTS:UNITS:", "viper1", "imperial")
	assert.Equal(t, true, f.dispatch(t, ":REPORTS:TOGGLE:", "viper1"))
}

func TestKillFlow(t *testing.T) {
	f := newFixture(t)

	id := f.dispatch(t, ":CAMPAIGN:START:", "Operation Harvest Red", "Altis")
	require.Len(t, f.backend.started, 1)
	assert.Equal(t, f.backend.started[0].ID.String(), id)

	f.dispatch(t, ":NEW:UNIT:", "viper1", "WEST", "B_Plane_Fighter_01_F")
	f.dispatch(t, ":NEW:UNIT:", "mig", "EAST", "O_Plane_Fighter_02_F")
	f.dispatch(t, ":FIRED:", "10", "viper1", "mig", `["","weapon_AMRAAMLauncher","PylonMissile_Missile_AMRAAM_D_x1"]`)
	f.dispatch(t, ":HIT:", "14", "viper1", "mig", `["","weapon_AMRAAMLauncher",""]`, "true")
	assert.Equal(t, false, f.dispatch(t, ":KILLED:", "15", "mig"))

	assert.Equal(t, "queued", f.dispatch(t, ":DRAIN:", "20"))
	require.Eventually(t, func() bool { return f.backend.killCount() == 1 }, time.Second, 5*time.Millisecond)

	f.backend.mu.Lock()
	kill := f.backend.kills[0]
	f.backend.mu.Unlock()
	assert.Equal(t, core.EntityID("mig"), kill.VictimID)
	assert.Equal(t, core.SideEast, kill.VictimSide)
	require.Len(t, kill.Shots, 2)
	assert.Equal(t, core.SideWest, kill.Shots[0].ShooterSide)

	assert.Equal(t, 0, f.dispatch(t, ":CAMPAIGN:END:", "60"))
	assert.Equal(t, 1, f.backend.ended)
	assert.Nil(t, f.coord.Campaign())
	assert.NotContains(t, f.logs.String(), ErrUnknownUnit.Error())
}

func TestCampaignEnd_DrainsBeforeBackendCloses(t *testing.T) {
	f := newFixture(t)

	f.dispatch(t, ":CAMPAIGN:START:", "Last Light")
	f.dispatch(t, ":KILLED:", "5", "tank")

	assert.Equal(t, 1, f.dispatch(t, ":CAMPAIGN:END:"))
	assert.Equal(t, 1, f.backend.killCount())
	assert.Equal(t, 1, f.backend.ended)
}

func TestCampaignStart_EndsRunningCampaign(t *testing.T) {
	f := newFixture(t)

	f.dispatch(t, ":CAMPAIGN:START:", "First")
	f.dispatch(t, ":CAMPAIGN:START:", "Second")

	assert.Len(t, f.backend.started, 2)
	assert.Equal(t, 1, f.backend.ended)
	assert.Equal(t, "Second", f.coord.CampaignName())
	assert.Contains(t, f.logs.String(), "Campaign already running")
}

func TestCampaignEnd_WithoutCampaign(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 0, f.dispatch(t, ":CAMPAIGN:END:"))
	assert.Zero(t, f.backend.ended)
}

func TestCampaignEnd_BackendError(t *testing.T) {
	f := newFixture(t)
	f.backend.endErr = errors.New("disk full")

	f.dispatch(t, ":CAMPAIGN:START:", "Doomed")
	_, err := f.d.Dispatch(dispatcher.Event{Command: ":CAMPAIGN:END:"})
	assert.ErrorContains(t, err, "disk full")
}

func TestUnknownUnitsAreLoggedNotRejected(t *testing.T) {
	f := newFixture(t)

	f.dispatch(t, ":FIRED:", "10", "ghost", "mig", `["","",""]`)
	assert.Contains(t, f.logs.String(), ErrUnknownUnit.Error())
	assert.Equal(t, 1, f.coord.Stats().Ledger.Shots)
}

func TestParseErrorsPropagate(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		cmd  string
		args []string
	}{
		{":NEW:UNIT:", []string{"1"}},
		{":SENSOR:", []string{"0", "WEST", "1"}},
		{":AIR:", []string{"1", "EAST"}},
		{":TICK:", nil},
		{":FIRED:", []string{"1"}},
		{":HIT:", []string{"1", "a", "b", "[]", "maybe"}},
		{":KILLED:", []string{"soon", "a"}},
		{":DRAIN:", []string{"later"}},
		{":REPORT:", []string{"1"}},
		{":REPORTS:TOGGLE:", nil},
		{":REPORTS:UNITS:", []string{"a", "furlongs"}},
		{":CAMPAIGN:START:", []string{""}},
		{":CAMPAIGN:END:", []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			_, err := f.d.Dispatch(dispatcher.Event{Command: tt.cmd, Args: tt.args})
			if tt.cmd == ":DRAIN:" {
				// Buffered: the parse error is logged by the dispatcher goroutine.
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestStatusAndWriteDuration(t *testing.T) {
	f := newFixture(t)
	f.backend.writeTime = 42 * time.Millisecond

	f.dispatch(t, ":NEW:UNIT:", "viper1", "WEST", "B_Plane_Fighter_01_F")
	st, ok := f.dispatch(t, ":STATUS:").(campaign.Stats)
	require.True(t, ok)
	assert.Equal(t, 1, st.Units)
	assert.Equal(t, 42*time.Millisecond, f.manager.LastWriteDuration())

	m := NewManager(Dependencies{Coordinator: f.coord})
	assert.Zero(t, m.LastWriteDuration())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type exportingBackend struct {
	mockBackend
	path string
}

func (b *exportingBackend) ExportedFilePath() string { return b.path }

type fakeUploader struct {
	paths []string
	metas []core.UploadMetadata
	err   error
}

func (u *fakeUploader) Upload(path string, meta core.UploadMetadata) error {
	u.paths = append(u.paths, path)
	u.metas = append(u.metas, meta)
	return u.err
}

func TestCampaignEnd_UploadsExport(t *testing.T) {
	coord, err := campaign.New(campaign.Config{FrameLimit: 10}, campaign.Dependencies{Terrain: terrain.Flat{}})
	require.NoError(t, err)
	d, err := dispatcher.New(&mockLogger{}, nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	logs := &lockedBuffer{}
	backend := &exportingBackend{path: "/tmp/killlogs/Sunset_20260314_183000.json.gz"}
	up := &fakeUploader{err: errors.New("server down")}
	NewManager(Dependencies{
		Coordinator: coord,
		Logger:      slog.New(slog.NewTextHandler(logs, nil)),
		Backend:     backend,
		Uploader:    up,
		UploadTag:   "coop",
	}).RegisterHandlers(d)

	start := time.Unix(1000, 0).UTC()
	_, err = d.Dispatch(dispatcher.Event{Command: ":CAMPAIGN:START:", Args: []string{"Sunset", "Tanoa"}, Timestamp: start})
	require.NoError(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: ":CAMPAIGN:END:", Args: []string{"1600"}, Timestamp: start})
	require.NoError(t, err, "upload failure is not a command failure")

	require.Equal(t, []string{backend.path}, up.paths)
	assert.Equal(t, core.UploadMetadata{
		CampaignName: "Sunset",
		Theatre:      "Tanoa",
		Duration:     600,
		Tag:          "coop",
	}, up.metas[0])
	assert.Contains(t, logs.String(), "Failed to upload kill log")
}
