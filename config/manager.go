package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigManager interface for configuration management
type ConfigManager interface { //nolint:revive
	LoadConfig(configName string, config Config) error
	GetConfig(configName string) (Config, error)
	Viper(configName string) (*viper.Viper, error)
	RegisterValidator(configName string, validator ValidatorFunc)
	RegisterHook(configName string, hook HookFunc)
	AddChangeListener(listener ConfigChangeListener)
	SetBasePath(path string)
	SetEnvironment(env string)
	SetErrorHandler(handler ErrorHandler)
	Close() error
}

// ValidatorFunc configuration validation function
type ValidatorFunc func(Config) error

// HookFunc configuration change hook function
type HookFunc func(oldVal, newVal Config) error

// ErrorHandler receives errors raised by background reloads. The manager
// sits below the logger in the dependency graph, so it reports through a
// callback instead of logging itself.
type ErrorHandler func(configName string, err error)

// configManager implementation of ConfigManager interface
type configManager struct {
	mu         sync.RWMutex
	configs    map[string]Config
	vipers     map[string]*viper.Viper
	watchers   map[string]*fsnotify.Watcher
	validators map[string]ValidatorFunc
	hooks      map[string][]HookFunc
	listeners  []ConfigChangeListener
	onError    ErrorHandler
	basePath   string
	env        string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() ConfigManager {
	return &configManager{
		configs:    make(map[string]Config),
		vipers:     make(map[string]*viper.Viper),
		watchers:   make(map[string]*fsnotify.Watcher),
		validators: make(map[string]ValidatorFunc),
		hooks:      make(map[string][]HookFunc),
		onError:    stderrHandler,
		basePath:   "./configs",
		env:        "development",
	}
}

func stderrHandler(configName string, err error) {
	fmt.Fprintf(os.Stderr, "config %s: %v\n", configName, err)
}

// newViper builds the viper instance used for both initial load and reload.
func (cm *configManager) newViper(configName string, config Config) *viper.Viper {
	v := viper.New()

	// Set configuration file path
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.AddConfigPath(fmt.Sprintf("%s/%s", cm.basePath, cm.env))

	// Read environment variables for override
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(configName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if d, ok := config.(Defaulter); ok {
		for k, val := range d.Defaults() {
			v.SetDefault(k, val)
		}
	}
	return v
}

// LoadConfig loads configuration from file
func (cm *configManager) LoadConfig(configName string, config Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	v := cm.newViper(configName, config)

	// A missing file is fine when defaults and env cover the config.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config failed: %w", err)
		}
	}

	// Unmarshal to struct
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("validate config failed: %w", err)
	}
	if validator, exists := cm.validators[configName]; exists {
		if err := validator(config); err != nil {
			return fmt.Errorf("validate config failed: %w", err)
		}
	}

	// Store configuration
	cm.configs[configName] = config
	cm.vipers[configName] = v

	// Set up file watching
	if err := cm.watchConfigFile(configName, v); err != nil {
		return fmt.Errorf("watch config file failed: %w", err)
	}

	return nil
}

// GetConfig retrieves a loaded configuration by name
func (cm *configManager) GetConfig(configName string) (Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	config, exists := cm.configs[configName]
	if !exists {
		return nil, fmt.Errorf("config %s not found", configName)
	}

	return config, nil
}

// Viper returns the viper instance backing a loaded configuration, used for
// free-form property lookups.
func (cm *configManager) Viper(configName string) (*viper.Viper, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	v, exists := cm.vipers[configName]
	if !exists {
		return nil, fmt.Errorf("config %s not found", configName)
	}
	return v, nil
}

// RegisterValidator registers configuration validator
func (cm *configManager) RegisterValidator(configName string, validator ValidatorFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.validators[configName] = validator
}

// RegisterHook registers configuration change hook
func (cm *configManager) RegisterHook(configName string, hook HookFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.hooks[configName] = append(cm.hooks[configName], hook)
}

// AddChangeListener registers a listener notified after every successful reload
func (cm *configManager) AddChangeListener(listener ConfigChangeListener) {
	if listener == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.listeners = append(cm.listeners, listener)
}

// SetBasePath sets base path for configuration files
func (cm *configManager) SetBasePath(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.basePath = path
}

// SetEnvironment sets environment for configuration
func (cm *configManager) SetEnvironment(env string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.env = env
}

// SetErrorHandler replaces the handler for background reload errors
func (cm *configManager) SetErrorHandler(handler ErrorHandler) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if handler == nil {
		handler = stderrHandler
	}
	cm.onError = handler
}

// watchConfigFile watches configuration file for changes
func (cm *configManager) watchConfigFile(configName string, v *viper.Viper) error {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		return nil
	}
	if _, exists := cm.watchers[configName]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	cm.watchers[configName] = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					cm.reloadConfig(configName)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				cm.reportError(configName, fmt.Errorf("watcher: %w", err))
			}
		}
	}()

	return watcher.Add(configFile)
}

func (cm *configManager) reportError(configName string, err error) {
	cm.mu.RLock()
	h := cm.onError
	cm.mu.RUnlock()
	h(configName, err)
}

// reloadConfig reloads configuration when file changes
func (cm *configManager) reloadConfig(configName string) {
	cm.mu.Lock()

	oldConfig, exists := cm.configs[configName]
	if !exists {
		cm.mu.Unlock()
		return
	}

	// Create new config instance (preserve original type via reflection)
	newConfig := reflect.New(reflect.TypeOf(oldConfig).Elem()).Interface().(Config)

	v := cm.newViper(configName, newConfig)
	if err := v.ReadInConfig(); err != nil {
		cm.mu.Unlock()
		cm.reportError(configName, fmt.Errorf("reload read: %w", err))
		return
	}

	if err := v.Unmarshal(newConfig); err != nil {
		cm.mu.Unlock()
		cm.reportError(configName, fmt.Errorf("reload unmarshal: %w", err))
		return
	}

	if err := newConfig.Validate(); err != nil {
		cm.mu.Unlock()
		cm.reportError(configName, fmt.Errorf("reload validate: %w", err))
		return
	}
	if validator, exists := cm.validators[configName]; exists {
		if err := validator(newConfig); err != nil {
			cm.mu.Unlock()
			cm.reportError(configName, fmt.Errorf("reload validate: %w", err))
			return
		}
	}

	// Hooks may veto the change, the old config stays in place
	for _, hook := range cm.hooks[configName] {
		if err := hook(oldConfig, newConfig); err != nil {
			cm.mu.Unlock()
			cm.reportError(configName, fmt.Errorf("reload hook: %w", err))
			return
		}
	}

	cm.configs[configName] = newConfig
	cm.vipers[configName] = v
	listeners := append([]ConfigChangeListener(nil), cm.listeners...)
	cm.mu.Unlock()

	cm.notify(configName, newConfig, oldConfig, listeners)
}

// notify runs outside the lock so listeners may call back into the manager.
func (cm *configManager) notify(configName string, newConfig, oldConfig Config, listeners []ConfigChangeListener) {
	for _, l := range listeners {
		if err := l.OnConfigChanged(configName, newConfig, oldConfig); err != nil {
			cm.reportError(configName, fmt.Errorf("listener: %w", err))
		}
	}
}

// Close closes the configuration manager
func (cm *configManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, watcher := range cm.watchers {
		if err := watcher.Close(); err != nil {
			return err
		}
		delete(cm.watchers, name)
	}

	return nil
}

var (
	_instance     ConfigManager
	_instanceOnce sync.Once
	_instanceMu   sync.Mutex
)

// GetInstance returns the process wide configuration manager
func GetInstance() ConfigManager {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instanceOnce.Do(func() {
		if _instance == nil {
			_instance = NewConfigManager()
		}
	})
	return _instance
}

// SetInstanceForTesting replaces the process wide manager
func SetInstanceForTesting(cm ConfigManager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instance = cm
	_instanceOnce = sync.Once{}
}

// ResetInstance drops the process wide manager; the next GetInstance builds a new one
func ResetInstance() {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instance = nil
	_instanceOnce = sync.Once{}
}
