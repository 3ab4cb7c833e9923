package logger

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	coreconfig "github.com/m3rciful/bookingbot/core/config"
)

func TestLegacyLoggersUsableBeforeInit(t *testing.T) {
	require.NotNil(t, L)
	require.NotNil(t, SVCMedia)
	require.NotNil(t, SVCAppointments)
	require.NotNil(t, Component("conversation"))
	Info(Background(), "conversation", "test.event", slog.String("flow", "booking"))
}

func TestBuildOutputsRotatingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &coreconfig.Config{}
	cfg.Logging.Dir = dir
	cfg.Logging.BotFile = "bot.log"
	cfg.Logging.MaxSizeMB = 10

	writers, closers, err := buildOutputs(cfg)
	require.NoError(t, err)
	require.Len(t, writers, 2)
	require.Len(t, closers, 1)

	rotator, ok := writers[1].(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "bot.log"), rotator.Filename)
	assert.Equal(t, 10, rotator.MaxSize)
	assert.Equal(t, 5, rotator.MaxBackups)
	assert.Equal(t, 14, rotator.MaxAge)

	_, err = rotator.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, closers[0].Close())
}

func TestBuildOutputsStdoutOnly(t *testing.T) {
	writers, closers, err := buildOutputs(&coreconfig.Config{})
	require.NoError(t, err)
	assert.Len(t, writers, 1)
	assert.Empty(t, closers)
}

func TestStructuredHandlerConversationKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	log := slog.New(handler).With("component", "conversation")
	LogEvent(Background(), log, slog.LevelDebug, "fsm.transition",
		slog.String("to", "time"),
		slog.String("from", "date"),
		slog.String("flow", "booking"),
	)
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())

	line := strings.TrimSpace(buf.String())
	flow := strings.Index(line, "flow=booking")
	from := strings.Index(line, "from=date")
	to := strings.Index(line, "to=time")
	require.True(t, flow > 0 && from > 0 && to > 0, line)
	assert.Less(t, flow, from)
	assert.Less(t, from, to)
}

func TestDebugSample(t *testing.T) {
	tests := []struct {
		spec     string
		num, den int
	}{
		{"", 1, 50},
		{"1/10", 1, 10},
		{"20", 1, 20},
		{"0/0", 0, 0},
		{"-1/5", 1, 50},
		{"abc", 0, 0},
	}
	for _, tt := range tests {
		cfg := &coreconfig.Config{}
		cfg.Logging.DebugSample = tt.spec
		num, den := debugSample(cfg)
		assert.Equal(t, tt.num, num, "spec %q", tt.spec)
		assert.Equal(t, tt.den, den, "spec %q", tt.spec)
	}
}

func TestTraceRequested(t *testing.T) {
	t.Setenv("TRACE", "")
	t.Setenv("LOG_TRACE", "")
	assert.False(t, traceRequested())
	t.Setenv("LOG_TRACE", " Yes ")
	assert.True(t, traceRequested())
}

func TestSelectLevel(t *testing.T) {
	cfg := &coreconfig.Config{}
	for raw, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		cfg.Logging.Level = raw
		assert.Equal(t, want, selectLevel(cfg), "level %q", raw)
	}
}
