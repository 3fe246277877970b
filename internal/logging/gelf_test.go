package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGelf struct {
	msgs []*gelf.Message
	err  error
}

func (f *fakeGelf) WriteMessage(m *gelf.Message) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func TestGelfHandler_WritesMessage(t *testing.T) {
	w := &fakeGelf{}
	logger := slog.New(NewGelfHandler(w, slog.LevelInfo))

	logger.Warn("Detection queries failed", "skipped", 3, "side", "WEST", "ratio", 0.5, "ok", true)

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "1.1", m.Version)
	assert.Equal(t, "Detection queries failed", m.Short)
	assert.Equal(t, int32(4), m.Level)
	assert.NotZero(t, m.TimeUnix)
	assert.Equal(t, int64(3), m.Extra["_skipped"])
	assert.Equal(t, "WEST", m.Extra["_side"])
	assert.Equal(t, 0.5, m.Extra["_ratio"])
	assert.Equal(t, true, m.Extra["_ok"])
}

func TestGelfHandler_LevelFilter(t *testing.T) {
	w := &fakeGelf{}
	logger := slog.New(NewGelfHandler(w, slog.LevelInfo))

	logger.Debug("dropped")
	assert.Empty(t, w.msgs)
}

func TestGelfHandler_AttrsAndGroups(t *testing.T) {
	w := &fakeGelf{}
	logger := slog.New(NewGelfHandler(w, slog.LevelDebug)).
		With("component", "campaign").
		WithGroup("tick").
		With("n", 7)

	logger.Info("Tick processed", "updated", 2, slog.Group("cache", "hits", 10))

	require.Len(t, w.msgs, 1)
	extra := w.msgs[0].Extra
	assert.Equal(t, "campaign", extra["_component"])
	assert.Equal(t, int64(7), extra["_tick.n"])
	assert.Equal(t, int64(2), extra["_tick.updated"])
	assert.Equal(t, int64(10), extra["_tick.cache.hits"])
}

func TestGelfHandler_PropagatesWriteError(t *testing.T) {
	boom := errors.New("udp closed")
	h := NewGelfHandler(&fakeGelf{err: boom}, slog.LevelInfo)

	var r slog.Record
	r.Message = "x"
	r.Level = slog.LevelError
	assert.ErrorIs(t, h.Handle(context.Background(), r), boom)
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}
