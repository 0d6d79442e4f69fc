package plugin

import (
	"github.com/lcx/hotplug/definition"
)

// kindHandler finishes a freshly built object of one definition kind.
type kindHandler func(def *definition.Definition, obj any) (any, error)

// handlers maps each kind to its post-processing step. Kinds without an
// entry pass through untouched.
func (a *Application) handlers() map[definition.Kind]kindHandler {
	return map[definition.Kind]kindHandler{
		definition.Controller: func(def *definition.Definition, obj any) (any, error) {
			if err := a.routes.Register(def, obj); err != nil {
				return nil, err
			}
			return obj, nil
		},
		definition.Config: func(def *definition.Definition, obj any) (any, error) {
			if a.resolver == nil {
				return obj, nil
			}
			return a.resolver.Resolve(def, obj)
		},
	}
}

// PostProcess implements container.PostProcessor. The definition is found
// by bean name first, since one Go type may back beans of several plugins;
// objects the registry does not know are returned as they are.
func (a *Application) PostProcess(name string, obj any) (any, error) {
	def, ok := a.registry.Lookup(name)
	if !ok {
		def = a.registry.FindDefinitionFor(obj)
	}
	if def == nil {
		return obj, nil
	}
	h, ok := a.kindHandlers[def.Kind]
	if !ok {
		return obj, nil
	}
	return h(def, obj)
}
