package plugin

import (
	"errors"
	"fmt"
	"time"

	"github.com/lcx/hotplug/config"
	"github.com/lcx/hotplug/log"
	"github.com/lcx/hotplug/route"
)

// PropertiesName is the configuration name of the host properties.
const PropertiesName = "plugind"

// Properties configures the runtime. Loaded through config.ConfigManager
// under "plugind", so PLUGIND_* variables override the file.
type Properties struct {
	// Path is the plugin directory.
	Path string `mapstructure:"path"`
	// ConfigPath is the plugin config directory.
	ConfigPath string `mapstructure:"configPath"`
	// RestPathPrefix is the global route prefix.
	RestPathPrefix string `mapstructure:"restPathPrefix"`
	// EnablePluginIDRestPathPrefix inserts the plugin segment into every
	// route.
	EnablePluginIDRestPathPrefix bool `mapstructure:"enablePluginIdRestPathPrefix"`
	// Watch installs and removes packages as archives come and go.
	Watch bool `mapstructure:"watch"`

	Limiter route.LimiterConfig `mapstructure:"limiter"`
	Consul  ConsulProperties    `mapstructure:"consul"`
}

// ConsulProperties configures the state announcer.
type ConsulProperties struct {
	Enabled bool          `mapstructure:"enabled"`
	Address string        `mapstructure:"address"`
	Prefix  string        `mapstructure:"prefix"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultProperties returns the properties used when nothing is configured.
func DefaultProperties() *Properties {
	return &Properties{
		Path:                         "plugins",
		ConfigPath:                   "plugin-configs",
		EnablePluginIDRestPathPrefix: true,
		Consul: ConsulProperties{
			Address: "127.0.0.1:8500",
			Prefix:  "hotplug/plugins",
			Timeout: 3 * time.Second,
		},
	}
}

func (p *Properties) GetName() string {
	return PropertiesName
}

// Validate implements config.Config.
func (p *Properties) Validate() error {
	if p.Path == "" {
		return errors.New("plugin path is empty")
	}
	if err := p.Limiter.Validate(); err != nil {
		return err
	}
	if p.Consul.Enabled && p.Consul.Address == "" {
		return errors.New("consul enabled without address")
	}
	return nil
}

// Defaults implements config.Defaulter.
func (p *Properties) Defaults() map[string]any {
	d := DefaultProperties()
	return map[string]any{
		"path":                         d.Path,
		"configPath":                   d.ConfigPath,
		"enablePluginIdRestPathPrefix": d.EnablePluginIDRestPathPrefix,
		"consul.address":               d.Consul.Address,
		"consul.prefix":                d.Consul.Prefix,
		"consul.timeout":               d.Consul.Timeout.String(),
	}
}

func (p *Properties) prefixSettings() route.PrefixSettings {
	return route.PrefixSettings{
		RestPathPrefix:       p.RestPathPrefix,
		EnablePluginIDPrefix: p.EnablePluginIDRestPathPrefix,
	}
}

// LoadProperties loads the host properties through cm.
func LoadProperties(cm config.ConfigManager) (*Properties, error) {
	props := &Properties{}
	if err := cm.LoadConfig(PropertiesName, props); err != nil {
		return nil, fmt.Errorf("load %s properties: %w", PropertiesName, err)
	}
	return props, nil
}

// OnConfigChanged implements config.ConfigChangeListener. New prefix
// settings apply to the next start; the limiter is swapped at once.
func (a *Application) OnConfigChanged(configName string, newConfig, _ config.Config) error {
	if configName != PropertiesName {
		return nil
	}
	props, ok := newConfig.(*Properties)
	if !ok {
		return fmt.Errorf("invalid config type: expected *Properties, got %T", newConfig)
	}
	a.props.Store(props)
	if err := a.applyLimiter(props.Limiter); err != nil {
		return err
	}
	log.Info().Str("prefix", props.RestPathPrefix).Bool("pluginIdPrefix", props.EnablePluginIDRestPathPrefix).
		Str("limiter", props.Limiter.Kind).Msg("plugin properties reloaded")
	return nil
}

func (a *Application) applyLimiter(c route.LimiterConfig) error {
	if a.limited == nil {
		return nil
	}
	l, err := route.NewLimiter(c)
	if err != nil {
		return err
	}
	a.limited.SetLimiter(l)
	return nil
}
