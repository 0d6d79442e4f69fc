package log

import (
	"fmt"
)

// LogCfg represents the logging configuration of the plugin host.
// It is loaded through the ConfigManager under the name "logger" and
// supports hot reload of the level without restarting the host.
type LogCfg struct {
	// LogPath specifies the target log file path for file-based logging.
	LogPath string `mapstructure:"path"`

	// LogLevel defines the minimum log level for filtering log entries.
	// Valid levels: debug, info, warn, error, fatal.
	LogLevel string `mapstructure:"level"`

	// Format selects the encoder, "json" or "console".
	Format string `mapstructure:"format"`

	// FileAppender enables file-based logging output.
	FileAppender bool `mapstructure:"fileAppender"`

	// ConsoleAppender enables console (stderr) logging output.
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// GetName implements config.Config.
func (cfg *LogCfg) GetName() string {
	return "logger"
}

// Validate implements config.Config.
func (cfg *LogCfg) Validate() error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.FileAppender && cfg.LogPath == "" {
		return fmt.Errorf("file appender enabled without a log path")
	}
	switch cfg.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}

// Defaults implements config.Defaulter.
func (cfg *LogCfg) Defaults() map[string]any {
	return map[string]any{
		"level":           "info",
		"format":          "json",
		"consoleAppender": true,
	}
}

var _defaultCfg = &LogCfg{
	LogLevel:        "info",
	Format:          "json",
	ConsoleAppender: true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}

// Level returns the parsed level, info when unset or invalid.
func (cfg *LogCfg) Level() Level {
	lv, _ := ParseLevel(cfg.LogLevel)
	return lv
}
