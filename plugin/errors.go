package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPlugin is returned for an id with no installed package.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrAlreadyInstalled is returned when a package id is installed twice.
	ErrAlreadyInstalled = errors.New("plugin already installed")
	// ErrDestruction wraps a bean that failed to destroy during stop.
	ErrDestruction = errors.New("bean destruction failed")
	// ErrNoBean is returned when no live component has the requested type.
	ErrNoBean = errors.New("no matching bean")
	// ErrAmbiguousBean is returned when more than one live component has
	// the requested type.
	ErrAmbiguousBean = errors.New("more than one matching bean")
)

// PluginError is a failed lifecycle operation on one plugin.
type PluginError struct { //nolint:revive
	Plugin string
	Op     string
	Err    error
}

// NewPluginError wraps err with the plugin and operation.
func NewPluginError(plugin, op string, err error) *PluginError {
	return &PluginError{Plugin: plugin, Op: op, Err: err}
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Op, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}
