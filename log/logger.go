package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lcx/hotplug/config"
)

// Logger is a leveled, chained logger backed by zap.
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

var _defaultLogger atomic.Pointer[Logger]

func init() {
	l, err := NewLogger(nil)
	if err != nil {
		panic(err)
	}
	_defaultLogger.Store(l)
}

// NewLogger builds a logger from cfg. A nil cfg logs info and above as JSON
// to stderr.
func NewLogger(cfg *LogCfg) (*Logger, error) {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	level := zap.NewAtomicLevelAt(cfg.Level().zap())
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "time"

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	var cores []zapcore.Core
	if cfg.ConsoleAppender {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}
	if cfg.FileAppender {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), level))
	}

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.EnabledCallerInfo {
		opts = append(opts, zap.AddCaller())
	}
	return &Logger{z: zap.New(zapcore.NewTee(cores...), opts...), level: level}, nil
}

// NewWithCore wraps an existing zap core. Used by tests and embedders that
// already own a zap pipeline.
func NewWithCore(core zapcore.Core, level Level) *Logger {
	al := zap.NewAtomicLevelAt(level.zap())
	return &Logger{z: zap.New(core, zap.AddCallerSkip(1)), level: al}
}

func (l *Logger) event(level Level) *LogEvent {
	if !l.level.Enabled(level.zap()) {
		return nil
	}
	return newEvent(l, level)
}

func (l *Logger) Debug() *LogEvent { return l.event(DebugLevel) }
func (l *Logger) Info() *LogEvent  { return l.event(InfoLevel) }
func (l *Logger) Warn() *LogEvent  { return l.event(WarnLevel) }
func (l *Logger) Error() *LogEvent { return l.event(ErrorLevel) }
func (l *Logger) Fatal() *LogEvent { return l.event(FatalLevel) }

func (l *Logger) write(level Level, msg string, fields []zap.Field) {
	if ce := l.z.Check(level.zap(), msg); ce != nil {
		ce.Write(fields...)
	}
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	case zapcore.FatalLevel:
		return FatalLevel
	default:
		return InfoLevel
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zap())
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// OnConfigChanged implements config.ConfigChangeListener. Only the level is
// applied live; encoder and appender changes need a restart.
func (l *Logger) OnConfigChanged(configName string, newConfig, _ config.Config) error {
	if configName != (&LogCfg{}).GetName() {
		return nil
	}
	cfg, ok := newConfig.(*LogCfg)
	if !ok {
		return fmt.Errorf("unexpected logger config type %T", newConfig)
	}
	l.SetLevel(cfg.Level())
	return nil
}

// SetDefaultLogger replaces the logger behind the package-level functions.
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		_defaultLogger.Store(logger)
	}
}

// Default returns the logger behind the package-level functions.
func Default() *Logger {
	return _defaultLogger.Load()
}

// Initialize loads the "logger" config from cm, installs the resulting
// logger as default and subscribes it to config reloads. A nil cm uses the
// process wide manager.
func Initialize(cm config.ConfigManager) error {
	if cm == nil {
		cm = config.GetInstance()
	}
	cfg := &LogCfg{}
	if err := cm.LoadConfig(cfg.GetName(), cfg); err != nil {
		return err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetDefaultLogger(logger)
	cm.AddChangeListener(logger)
	return nil
}

func Debug() *LogEvent { return Default().Debug() }
func Info() *LogEvent  { return Default().Info() }
func Warn() *LogEvent  { return Default().Warn() }
func Error() *LogEvent { return Default().Error() }
func Fatal() *LogEvent { return Default().Fatal() }
