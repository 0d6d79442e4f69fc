// Package component describes the types a plugin contributes to the host.
//
// Go has no runtime annotations, so a plugin declares its components as
// Type values carrying explicit tags. The tags mirror the markers the
// classifier recognises: a generic component tag, a controller tag with a
// class-level request mapping, an extension tag and a config tag, plus an
// optional path-prefix override for controllers.
package component

import (
	"reflect"
	"strings"
)

// ComponentTag marks a generic component. Name overrides the generated
// bean name when non-empty.
type ComponentTag struct {
	Name string
}

// ControllerTag marks a type whose handler methods are published in the
// live route table.
type ControllerTag struct{}

// ExtensionTag marks an implementation of a host extension point.
type ExtensionTag struct {
	Point string
}

// ConfigTag marks a type bound from a plugin config file. An empty File
// means "<pluginId>.yml".
type ConfigTag struct {
	File string
}

// PathPrefixTag replaces the plugin id as the per-plugin route segment.
type PathPrefixTag struct {
	Value string
}

// Type is the metadata of one plugin component type.
type Type struct {
	// Name is the qualified name the type is loaded by, e.g. "demo.web.Hello".
	Name string
	// GoType is the declared type; every instance built by New is
	// assignable to it.
	GoType reflect.Type
	// Abstract types are never instantiated or registered.
	Abstract bool
	// New builds a zero instance.
	New func() any

	Component  *ComponentTag
	Controller *ControllerTag
	Extension  *ExtensionTag
	Config     *ConfigTag
	PathPrefix *PathPrefixTag

	// Mapping is the class-level request mapping of a controller.
	Mapping *Mapping
	// Handlers are the request-mapped methods of a controller.
	Handlers []*HandlerMethod
}

// Option configures a Type built by Define.
type Option func(*Type)

// Define builds the metadata for T. A struct T is described through *T
// and instantiated with new(T); an interface T is abstract.
func Define[T any](name string, opts ...Option) *Type {
	t := &Type{Name: name}
	rt := reflect.TypeFor[T]()
	switch rt.Kind() {
	case reflect.Interface:
		t.GoType = rt
		t.Abstract = true
	case reflect.Pointer:
		t.GoType = rt
		elem := rt.Elem()
		t.New = func() any { return reflect.New(elem).Interface() }
	default:
		t.GoType = reflect.PointerTo(rt)
		t.New = func() any { return new(T) }
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func AsComponent(name string) Option {
	return func(t *Type) { t.Component = &ComponentTag{Name: name} }
}

// AsController tags the type as a controller with a class-level request
// mapping on paths. Handlers are added with WithHandlers.
func AsController(paths ...string) Option {
	return func(t *Type) {
		t.Controller = &ControllerTag{}
		t.Mapping = &Mapping{Paths: paths}
	}
}

// AsBareController tags the type as a controller without a class-level
// request mapping. Such a type fails classification.
func AsBareController() Option {
	return func(t *Type) { t.Controller = &ControllerTag{} }
}

func AsExtension(point string) Option {
	return func(t *Type) { t.Extension = &ExtensionTag{Point: point} }
}

func AsConfig(file string) Option {
	return func(t *Type) { t.Config = &ConfigTag{File: file} }
}

func WithPathPrefix(value string) Option {
	return func(t *Type) { t.PathPrefix = &PathPrefixTag{Value: value} }
}

func WithHandlers(handlers ...*HandlerMethod) Option {
	return func(t *Type) { t.Handlers = append(t.Handlers, handlers...) }
}

// Abstract marks a concrete Go type as abstract.
func Abstract() Option {
	return func(t *Type) { t.Abstract = true }
}

// Tagged reports whether any classification tag is present.
func (t *Type) Tagged() bool {
	return t.Component != nil || t.Controller != nil || t.Extension != nil || t.Config != nil
}

// SimpleName is the last dot-separated segment of Name, or the Go type
// name when Name is empty.
func (t *Type) SimpleName() string {
	if t.Name != "" {
		if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
			return t.Name[i+1:]
		}
		return t.Name
	}
	rt := t.GoType
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil {
		return ""
	}
	return rt.Name()
}

// AssignableFrom reports whether v's dynamic type can be used as t.
func (t *Type) AssignableFrom(v any) bool {
	if v == nil || t.GoType == nil {
		return false
	}
	return reflect.TypeOf(v).AssignableTo(t.GoType)
}

func (t *Type) String() string {
	return t.Name
}
