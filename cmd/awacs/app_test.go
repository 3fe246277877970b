package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/awacs/internal/storage/memory"
)

const replayScript = `# recorded session
[":CAMPAIGN:START:", "Op Northern Watch", "Altis"]
[":NEW:UNIT:", "5", "WEST", "B_Plane_CAS_01_F", "Hawg 1"]
[":NEW:UNIT:", "9", "EAST", "O_Heli_Light_02_F", "Orca"]
[":FIRED:", "100", "5", "9", ["Wipeout", "GAU-8", "1350Rnd 30mm"]]
[":HIT:", "101", "5", "9", ["Wipeout", "GAU-8", "1350Rnd 30mm"], "true"]
[":KILLED:", "102", "9"]

[":VERSION:"]
[":NOPE:"]
[":CAMPAIGN:END:", "200"]
`

func writeConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "awacs.cfg.json"), data, 0o644))
	t.Cleanup(viper.Reset)
	return dir
}

func TestReplay_EndToEnd(t *testing.T) {
	work := t.TempDir()
	outDir := filepath.Join(work, "out")
	cfgDir := writeConfig(t, map[string]any{
		"logLevel":   "debug",
		"logsDir":    filepath.Join(work, "logs"),
		"statusFile": filepath.Join(work, "status.txt"),
		"storage": map[string]any{
			"type":   "memory",
			"memory": map[string]any{"outputDir": outDir},
		},
	})

	a, err := newApp(context.Background(), cfgDir)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, a.run(context.Background(), strings.NewReader(replayScript), &out, false))

	mem, ok := a.backend.(*memory.Backend)
	require.True(t, ok)
	require.NoError(t, a.close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], `["ok", "`), lines[0])
	assert.Equal(t, `["ok", false]`, lines[5])
	assert.Equal(t, `["ok", "`+Version+`"]`, lines[6])
	assert.Equal(t, `["error", "no handler registered for :NOPE:"]`, lines[7])
	assert.Equal(t, `["ok", 1]`, lines[8])

	kills := mem.Kills()
	require.Len(t, kills, 1)
	assert.Equal(t, "9", string(kills[0].VictimID))

	exported, err := filepath.Glob(filepath.Join(outDir, "Op_Northern_Watch_*.json.gz"))
	require.NoError(t, err)
	assert.Len(t, exported, 1)

	logs, err := filepath.Glob(filepath.Join(work, "logs", "*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
	assert.FileExists(t, filepath.Join(work, "status.txt"))
}

func TestNewApp_MissingConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	_, err := newApp(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "error reading config file")
}

func TestNewApp_BadTerrain(t *testing.T) {
	work := t.TempDir()
	cfgDir := writeConfig(t, map[string]any{
		"logsDir":    filepath.Join(work, "logs"),
		"statusFile": "",
		"terrain":    map[string]any{"file": filepath.Join(work, "missing.asc")},
	})

	_, err := newApp(context.Background(), cfgDir)
	assert.ErrorContains(t, err, "load terrain")
}
