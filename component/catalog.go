package component

import (
	"fmt"
	"sync"
)

// Catalog is the set of types one plugin package can load, keyed by
// qualified name. It is the per-plugin code context for plugins compiled
// into the host binary.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []string
}

// NewCatalog builds a catalog. Duplicate names panic, as catalogs are
// declared statically.
func NewCatalog(types ...*Type) *Catalog {
	c := &Catalog{types: make(map[string]*Type, len(types))}
	for _, t := range types {
		if err := c.Add(t); err != nil {
			panic(err)
		}
	}
	return c
}

// Add registers t under its name.
func (c *Catalog) Add(t *Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("component type without a name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.types[t.Name]; ok {
		return fmt.Errorf("component type %s already in catalog", t.Name)
	}
	c.types[t.Name] = t
	c.order = append(c.order, t.Name)
	return nil
}

// Lookup finds a type by qualified name.
func (c *Catalog) Lookup(name string) (*Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[name]
	return t, ok
}

// Names lists type names in insertion order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Extensions returns the concrete extension-tagged types in insertion
// order.
func (c *Catalog) Extensions() []*Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Type
	for _, name := range c.order {
		t := c.types[name]
		if t.Extension != nil && !t.Abstract {
			out = append(out, t)
		}
	}
	return out
}
