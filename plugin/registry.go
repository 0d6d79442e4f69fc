package plugin

import (
	"sync"

	"github.com/lcx/hotplug/definition"
)

// Registry maps plugin ids to the definitions discovered in them.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string][]*definition.Definition
	beans map[string]*definition.Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:  make(map[string][]*definition.Definition),
		beans: make(map[string]*definition.Definition),
	}
}

// Register appends def to the list of pluginID.
func (r *Registry) Register(pluginID string, def *definition.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[pluginID] = append(r.defs[pluginID], def)
	r.beans[def.BeanName] = def
}

// RemoveAll drops and returns every definition of pluginID in one step,
// so no reader sees a half cleared list.
func (r *Registry) RemoveAll(pluginID string) []*definition.Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	defs := r.defs[pluginID]
	delete(r.defs, pluginID)
	for _, d := range defs {
		if r.beans[d.BeanName] == d {
			delete(r.beans, d.BeanName)
		}
	}
	return defs
}

// FindDefinitionFor returns the first definition whose declared type
// accepts instance, nil when none does.
func (r *Registry) FindDefinitionFor(instance any) *definition.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, defs := range r.defs {
		for _, d := range defs {
			if d.Type.AssignableFrom(instance) {
				return d
			}
		}
	}
	return nil
}

// Lookup finds a definition by bean name.
func (r *Registry) Lookup(beanName string) (*definition.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.beans[beanName]
	return d, ok
}

// Definitions returns a copy of the list of pluginID.
func (r *Registry) Definitions(pluginID string) []*definition.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*definition.Definition(nil), r.defs[pluginID]...)
}

// All returns every definition of every plugin.
func (r *Registry) All() []*definition.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*definition.Definition
	for _, defs := range r.defs {
		out = append(out, defs...)
	}
	return out
}
