package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lcx/hotplug/config"
)

func newObserved(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewWithCore(core, level), logs
}

func TestChainedFields(t *testing.T) {
	l, logs := newObserved(DebugLevel)

	l.Info().
		Str("plugin", "demo").
		Strs("paths", []string{"/a", "/b"}).
		Int("routes", 2).
		Int64("size", 42).
		Bool("started", true).
		Dur("took", time.Second).
		Err(errors.New("boom")).
		Any("meta", map[string]int{"x": 1}).
		Msg("plugin started")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "plugin started", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	ctx := entry.ContextMap()
	assert.Equal(t, "demo", ctx["plugin"])
	assert.Equal(t, int64(2), ctx["routes"])
	assert.Equal(t, int64(42), ctx["size"])
	assert.Equal(t, true, ctx["started"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestErrNilAddsNothing(t *testing.T) {
	l, logs := newObserved(DebugLevel)
	l.Warn().Err(nil).Msg("no error")

	require.Equal(t, 1, logs.Len())
	_, has := logs.All()[0].ContextMap()["error"]
	assert.False(t, has)
}

func TestLevelFiltering(t *testing.T) {
	l, logs := newObserved(WarnLevel)

	assert.Nil(t, l.Debug())
	assert.Nil(t, l.Info())
	assert.NotNil(t, l.Warn())

	// A disabled event swallows the whole chain.
	l.Info().Str("k", "v").Int("n", 1).Msg("dropped")
	l.Error().Msgf("kept %d", 7)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept 7", logs.All()[0].Message)
}

func TestSetLevel(t *testing.T) {
	l, logs := newObserved(InfoLevel)
	l.Debug().Msg("hidden")
	l.SetLevel(DebugLevel)
	l.Debug().Msg("visible")

	assert.Equal(t, DebugLevel, l.Level())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "visible", logs.All()[0].Message)
}

func TestOnConfigChanged(t *testing.T) {
	l, _ := newObserved(InfoLevel)

	require.NoError(t, l.OnConfigChanged("logger", &LogCfg{LogLevel: "error"}, nil))
	assert.Equal(t, ErrorLevel, l.Level())

	// Other configs are ignored.
	require.NoError(t, l.OnConfigChanged("plugind", &LogCfg{LogLevel: "debug"}, nil))
	assert.Equal(t, ErrorLevel, l.Level())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "": InfoLevel,
		"warning": WarnLevel, "error": ErrorLevel, "fatal": FatalLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, strings.ToLower(want.String()), want.String())
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogCfgValidate(t *testing.T) {
	assert.NoError(t, (&LogCfg{LogLevel: "warn", Format: "console"}).Validate())
	assert.Error(t, (&LogCfg{LogLevel: "loud"}).Validate())
	assert.Error(t, (&LogCfg{Format: "xml"}).Validate())
	assert.Error(t, (&LogCfg{FileAppender: true}).Validate())
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "plugind.log")
	l, err := NewLogger(&LogCfg{LogLevel: "info", Format: "json", FileAppender: true, LogPath: path})
	require.NoError(t, err)

	l.Info().Str("plugin", "demo").Msg("installed")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"installed"`)
	assert.Contains(t, string(data), `"plugin":"demo"`)
}

func TestInitializeSubscribesToReload(t *testing.T) {
	prev := Default()
	defer SetDefaultLogger(prev)

	dir := t.TempDir()
	file := filepath.Join(dir, "logger.yaml")
	require.NoError(t, os.WriteFile(file, []byte("level: warn\nconsoleAppender: false\n"), 0o644))

	cm := config.NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)

	require.NoError(t, Initialize(cm))
	assert.NotSame(t, prev, Default())
	assert.Equal(t, WarnLevel, Default().Level())

	require.NoError(t, os.WriteFile(file, []byte("level: debug\nconsoleAppender: false\n"), 0o644))
	require.Eventually(t, func() bool {
		return Default().Level() == DebugLevel
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPackageFunctionsUseDefault(t *testing.T) {
	prev := Default()
	defer SetDefaultLogger(prev)

	l, logs := newObserved(DebugLevel)
	SetDefaultLogger(l)
	SetDefaultLogger(nil)

	Debug().Msg("d")
	Info().Msg("i")
	Warn().Msg("w")
	Error().Msg("e")

	assert.Equal(t, 4, logs.Len())
}
