// Package container is the default object container: it keeps definitions
// by bean name, builds singletons on first use and runs post-processors
// over every freshly built object.
package container

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lcx/hotplug/component"
	"github.com/lcx/hotplug/definition"
)

var (
	// ErrNoDefinition is returned for an unknown bean name.
	ErrNoDefinition = errors.New("no such definition")
	// ErrDuplicate is returned when a bean name is registered twice.
	ErrDuplicate = errors.New("duplicate definition")
)

// PostProcessor sees every object after construction and may replace it.
// An error discards the object.
type PostProcessor interface {
	PostProcess(name string, obj any) (any, error)
}

// PostProcessFunc adapts a function to PostProcessor.
type PostProcessFunc func(name string, obj any) (any, error)

func (f PostProcessFunc) PostProcess(name string, obj any) (any, error) {
	return f(name, obj)
}

// Destroyer is implemented by objects holding resources.
type Destroyer interface {
	Destroy() error
}

// Container is safe for concurrent use. Singletons of one name are built
// at most once.
type Container struct {
	mu         sync.RWMutex
	defs       map[string]*definition.Definition
	singletons map[string]any
	processors []PostProcessor

	// createMu serialises construction so a post-processor never races
	// a second build of the same bean.
	createMu sync.Mutex
}

// New creates an empty container.
func New() *Container {
	return &Container{
		defs:       make(map[string]*definition.Definition),
		singletons: make(map[string]any),
	}
}

// AddPostProcessor appends p. Processors run in insertion order.
func (c *Container) AddPostProcessor(p PostProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processors = append(c.processors, p)
}

// RegisterDefinition stores def under name.
func (c *Container) RegisterDefinition(name string, def *definition.Definition) error {
	if def == nil {
		return fmt.Errorf("register %s: nil definition", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.defs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	c.defs[name] = def
	return nil
}

// RemoveDefinition forgets name. The singleton, if any, is left to
// DestroySingleton.
func (c *Container) RemoveDefinition(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.defs, name)
}

// Definition returns the definition stored under name.
func (c *Container) Definition(name string) (*definition.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[name]
	return d, ok
}

// Names returns every registered bean name.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	return names
}

// RegisterSingleton stores an object built elsewhere. Post-processors are
// not applied.
func (c *Container) RegisterSingleton(name string, obj any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.singletons[name]; ok {
		return fmt.Errorf("%w: singleton %s", ErrDuplicate, name)
	}
	c.singletons[name] = obj
	return nil
}

// Live returns the singleton of name without building it.
func (c *Container) Live(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.singletons[name]
	return obj, ok
}

// GetSingleton returns the singleton of name, building and post-processing
// it on first use. A failed build leaves nothing behind.
func (c *Container) GetSingleton(name string) (any, error) {
	if obj, ok := c.Live(name); ok {
		return obj, nil
	}

	c.createMu.Lock()
	defer c.createMu.Unlock()
	if obj, ok := c.Live(name); ok {
		return obj, nil
	}

	c.mu.RLock()
	def, ok := c.defs[name]
	processors := append([]PostProcessor(nil), c.processors...)
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDefinition, name)
	}

	obj, err := c.Construct(def.Type)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", name, err)
	}
	for _, p := range processors {
		if obj, err = p.PostProcess(name, obj); err != nil {
			return nil, fmt.Errorf("post-process %s: %w", name, err)
		}
	}

	c.mu.Lock()
	c.singletons[name] = obj
	c.mu.Unlock()
	return obj, nil
}

// DestroySingleton drops the singleton of name and calls its Destroy
// method. An absent singleton is a no-op.
func (c *Container) DestroySingleton(name string) error {
	c.mu.Lock()
	obj, ok := c.singletons[name]
	delete(c.singletons, name)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if d, ok := obj.(Destroyer); ok {
		if err := d.Destroy(); err != nil {
			return fmt.Errorf("destroy %s: %w", name, err)
		}
	}
	return nil
}

// Construct builds a fresh object of t without registering it.
func (c *Container) Construct(t *component.Type) (obj any, err error) {
	if t == nil || t.New == nil {
		return nil, fmt.Errorf("type %v is not constructible", t)
	}
	defer func() {
		if r := recover(); r != nil {
			obj, err = nil, fmt.Errorf("constructor of %s panicked: %v", t.Name, r)
		}
	}()
	obj = t.New()
	if obj == nil {
		return nil, fmt.Errorf("constructor of %s returned nil", t.Name)
	}
	return obj, nil
}
