package definition

import (
	"fmt"

	"github.com/lcx/hotplug/component"
)

// kindSpec pairs a kind with its tag test and its builder. The builder
// validates the metadata the kind requires and fills the kind-specific
// part of the definition.
type kindSpec struct {
	kind    Kind
	matches func(*component.Type) bool
	build   func(*Definition) error
}

// kindTable is in classification priority order.
var kindTable = []kindSpec{
	{
		kind:    Generic,
		matches: func(t *component.Type) bool { return t.Component != nil },
		build:   func(*Definition) error { return nil },
	},
	{
		kind:    Controller,
		matches: func(t *component.Type) bool { return t.Controller != nil },
		build:   buildController,
	},
	{
		kind:    Extension,
		matches: func(t *component.Type) bool { return t.Extension != nil },
		build:   func(*Definition) error { return nil },
	},
	{
		kind:    Config,
		matches: func(t *component.Type) bool { return t.Config != nil },
		build:   buildConfig,
	},
}

func buildController(d *Definition) error {
	t := d.Type
	if t.Mapping == nil {
		return fmt.Errorf("%w: missing request mapping on %s", ErrClassification, t.Name)
	}
	if len(t.Handlers) == 0 {
		return fmt.Errorf("%w: no request-mapped method on %s", ErrClassification, t.Name)
	}
	for _, h := range t.Handlers {
		if h == nil || h.Bind == nil {
			return fmt.Errorf("%w: handler without binding on %s", ErrClassification, t.Name)
		}
	}
	// Handlers are copied per definition so plugins sharing a catalog never
	// own each other's routes.
	handlers := make([]*component.HandlerMethod, len(t.Handlers))
	for i, h := range t.Handlers {
		handlers[i] = h.Clone()
	}
	spec := &ControllerSpec{
		ClassPaths: append([]string(nil), t.Mapping.Paths...),
		Handlers:   handlers,
	}
	if t.PathPrefix != nil {
		v := t.PathPrefix.Value
		spec.PathPrefix = &v
	}
	d.Controller = spec
	return nil
}

func buildConfig(d *Definition) error {
	file := d.Type.Config.File
	if file == "" {
		file = d.PluginID + ".yml"
	}
	d.Config = &ConfigSpec{File: file}
	return nil
}

// Classify builds the definition of t for pluginID. The first matching
// kind wins; its metadata is read here once and never again.
func Classify(pluginID string, t *component.Type) (*Definition, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrClassification)
	}
	for _, spec := range kindTable {
		if !spec.matches(t) {
			continue
		}
		d := &Definition{
			Type:     t,
			PluginID: pluginID,
			Kind:     spec.kind,
			BeanName: BeanName(pluginID, t),
		}
		if err := spec.build(d); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: unknown component %s", ErrClassification, t.Name)
}
