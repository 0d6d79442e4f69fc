// Package plugin is the lifecycle engine: it installs plugin packages,
// starts them by discovering and registering their components, stops them
// by tearing those components down again, and tells listeners about every
// transition.
package plugin

import (
	"time"

	"github.com/lcx/hotplug/archive"
)

// State is the lifecycle state of a package.
type State int

const (
	StateInstalled State = iota
	StateStarted
	StateStopped
	StateUninstalled
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateInstalled:
		return "INSTALLED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	case StateUninstalled:
		return "UNINSTALLED"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in API payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Info is a snapshot of a package.
type Info struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	Provider    string    `json:"provider,omitempty"`
	License     string    `json:"license,omitempty"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path"`
	State       State     `json:"state"`
	InstalledAt time.Time `json:"installedAt"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	StoppedAt   time.Time `json:"stoppedAt,omitempty"`
	// Beans lists the bean names registered while started.
	Beans []string `json:"beans,omitempty"`
}

// Package is an installed plugin archive.
type Package struct {
	info Info
	code archive.CodeContext
}

func newPackage(desc *archive.Descriptor, path string, code archive.CodeContext) *Package {
	return &Package{
		info: Info{
			ID:          desc.ID,
			Version:     desc.Version,
			Provider:    desc.Provider,
			License:     desc.License,
			Description: desc.Description,
			Path:        path,
			State:       StateInstalled,
			InstalledAt: time.Now(),
		},
		code: code,
	}
}

func (p *Package) snapshot() Info {
	info := p.info
	info.Beans = append([]string(nil), p.info.Beans...)
	return info
}
