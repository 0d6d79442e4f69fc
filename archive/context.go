package archive

import (
	"errors"
	"fmt"
	goplugin "plugin"

	"github.com/lcx/hotplug/component"
)

// ErrTypeNotFound is returned when a code context cannot resolve a name.
var ErrTypeNotFound = errors.New("type not found")

// CodeContext resolves type names for exactly one plugin package. It is
// handed explicitly to whoever loads types; there is no process-wide
// lookup.
type CodeContext interface {
	LoadType(name string) (*component.Type, error)
	// Extensions lists the extension types the package contributes.
	Extensions() []*component.Type
	Close() error
}

type catalogContext struct {
	pluginID string
	catalog  *component.Catalog
}

// NewCatalogContext serves types from a compiled-in catalog.
func NewCatalogContext(pluginID string, c *component.Catalog) CodeContext {
	return &catalogContext{pluginID: pluginID, catalog: c}
}

func (c *catalogContext) LoadType(name string) (*component.Type, error) {
	t, ok := c.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s in plugin %s", ErrTypeNotFound, name, c.pluginID)
	}
	return t, nil
}

func (c *catalogContext) Extensions() []*component.Type {
	return c.catalog.Extensions()
}

func (c *catalogContext) Close() error {
	return nil
}

// CatalogSymbol is the symbol a Go plugin library exports.
const CatalogSymbol = "Catalog"

// openLibrary loads a Go plugin and wraps its exported catalog. The symbol
// may be a *component.Catalog variable or a func() *component.Catalog.
// Go cannot unload a plugin, so the library stays mapped after Close.
func openLibrary(pluginID, path string) (CodeContext, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open library %s: %w", path, err)
	}
	sym, err := p.Lookup(CatalogSymbol)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", path, err)
	}
	c, err := catalogFromSymbol(sym)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", path, err)
	}
	return NewCatalogContext(pluginID, c), nil
}

func catalogFromSymbol(sym any) (*component.Catalog, error) {
	switch s := sym.(type) {
	case **component.Catalog:
		if *s == nil {
			return nil, errors.New("nil catalog")
		}
		return *s, nil
	case *component.Catalog:
		return s, nil
	case func() *component.Catalog:
		if c := s(); c != nil {
			return c, nil
		}
		return nil, errors.New("nil catalog")
	default:
		return nil, fmt.Errorf("symbol %s has type %T", CatalogSymbol, sym)
	}
}
