// Package definition turns tagged component types into registration units.
package definition

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/lcx/hotplug/component"
)

// ErrClassification is returned for a type that matches no kind or misses
// metadata its kind requires.
var ErrClassification = errors.New("classification failed")

// Kind is the immutable variant of a definition.
type Kind int

const (
	Generic Kind = iota
	Controller
	Config
	Extension
)

func (k Kind) String() string {
	switch k {
	case Generic:
		return "generic"
	case Controller:
		return "controller"
	case Config:
		return "config"
	case Extension:
		return "extension"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kinds lists every variant.
func Kinds() []Kind {
	return []Kind{Generic, Controller, Config, Extension}
}

// ControllerSpec is the controller-only part of a definition.
type ControllerSpec struct {
	// ClassPaths are the class-level request-mapping fragments.
	ClassPaths []string
	// Handlers has at least one entry. They are copies of the type's
	// handlers owned by this definition alone.
	Handlers []*component.HandlerMethod
	// PathPrefix is the per-plugin segment override, nil when absent.
	PathPrefix *string
}

// Owns reports whether m is one of the controller's handler methods.
// Identity is the method pointer, never its paths.
func (c *ControllerSpec) Owns(m *component.HandlerMethod) bool {
	for _, h := range c.Handlers {
		if h == m {
			return true
		}
	}
	return false
}

// ConfigSpec is the config-only part of a definition.
type ConfigSpec struct {
	File string
}

// Definition is one registration unit of a plugin.
type Definition struct {
	Type     *component.Type
	PluginID string
	Kind     Kind
	BeanName string

	Controller *ControllerSpec
	Config     *ConfigSpec
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s(%s)", d.BeanName, d.Kind)
}

// Eligible reports whether discovery should classify t: it must be
// concrete and carry a recognised tag. Ineligible types are skipped
// without error.
func Eligible(t *component.Type) bool {
	return t != nil && !t.Abstract && t.New != nil && t.Tagged()
}

// BeanName is "<pluginId>@<name>". The name is the component tag name when
// set, otherwise the simple type name decapitalised.
func BeanName(pluginID string, t *component.Type) string {
	name := ""
	if t.Component != nil {
		name = t.Component.Name
	}
	if name == "" {
		name = decapitalize(t.SimpleName())
	}
	return pluginID + "@" + name
}

// decapitalize lower-cases the first rune unless the first two runes are
// both upper case, so "URLHandler" stays as is.
func decapitalize(s string) string {
	first, n := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	if second, _ := utf8.DecodeRuneInString(s[n:]); unicode.IsUpper(first) && unicode.IsUpper(second) {
		return s
	}
	return string(unicode.ToLower(first)) + s[n:]
}
