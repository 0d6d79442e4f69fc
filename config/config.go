package config

// Config interface defines the basic configuration contract
type Config interface {
	GetName() string
	Validate() error
}

// Defaulter is implemented by configurations that carry default values.
// Keys use the same dotted form as the configuration file.
type Defaulter interface {
	Defaults() map[string]any
}

// ConfigChangeListener is notified after a watched configuration has been
// reloaded, validated and swapped in.
type ConfigChangeListener interface { //nolint:revive
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
}
