// Package archive reads plugin packages: tar files (optionally gzipped)
// holding a plugin.yml descriptor and one ".type" entry per component type.
package archive

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DescriptorName is the archive entry holding the descriptor.
	DescriptorName = "plugin.yml"
	// TypeSuffix marks code entries. "a/b/C.type" names the type "a.b.C".
	TypeSuffix = ".type"
)

// Descriptor is the plugin.yml of a package.
type Descriptor struct {
	ID          string `yaml:"id" json:"id"`
	Version     string `yaml:"version" json:"version"`
	Provider    string `yaml:"provider" json:"provider"`
	License     string `yaml:"license" json:"license"`
	Description string `yaml:"description" json:"description"`
	// Catalog names the compiled-in catalog serving the package. It
	// defaults to ID.
	Catalog string `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	// Library is an archive entry holding a Go plugin that exports a
	// Catalog symbol. It takes precedence over Catalog.
	Library string `yaml:"library,omitempty" json:"library,omitempty"`
}

// ParseDescriptor decodes and validates a plugin.yml.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", DescriptorName, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the required fields.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%s: missing id", DescriptorName)
	}
	if strings.ContainsAny(d.ID, "/@ ") {
		return fmt.Errorf("%s: invalid id %q", DescriptorName, d.ID)
	}
	return nil
}

// CatalogName is the catalog the package resolves types from.
func (d *Descriptor) CatalogName() string {
	if d.Catalog != "" {
		return d.Catalog
	}
	return d.ID
}

// Marshal encodes d as yaml.
func (d *Descriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// TypeName maps a code entry to its qualified type name.
func TypeName(entry string) (string, bool) {
	if !strings.HasSuffix(entry, TypeSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(entry, "./"), TypeSuffix)
	if name == "" {
		return "", false
	}
	return strings.ReplaceAll(name, "/", "."), true
}

// EntryName maps a qualified type name to its code entry.
func EntryName(typeName string) string {
	return strings.ReplaceAll(typeName, ".", "/") + TypeSuffix
}
