package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcx/hotplug/archive"
	"github.com/lcx/hotplug/component"
	"github.com/lcx/hotplug/container"
	"github.com/lcx/hotplug/definition"
	"github.com/lcx/hotplug/log"
	"github.com/lcx/hotplug/metrics"
	"github.com/lcx/hotplug/resolver"
	"github.com/lcx/hotplug/route"
)

// ArchiveReader reads plugin packages.
type ArchiveReader interface {
	Open(path string) (*archive.Descriptor, archive.CodeContext, error)
	ListEntries(path string) ([]string, error)
	ReadBytes(path, entry string) ([]byte, error)
	LoadType(ctx archive.CodeContext, name string) (*component.Type, error)
}

// Container holds component definitions and their singletons.
type Container interface {
	RegisterDefinition(name string, def *definition.Definition) error
	RemoveDefinition(name string)
	GetSingleton(name string) (any, error)
	RegisterSingleton(name string, obj any) error
	Live(name string) (any, bool)
	DestroySingleton(name string) error
	Construct(t *component.Type) (any, error)
	AddPostProcessor(p container.PostProcessor)
}

// limitedTable is a route table that accepts a request limiter.
type limitedTable interface {
	SetLimiter(l route.Limiter)
}

// Option configures an Application.
type Option func(*Application)

// WithResolver binds config components through r.
func WithResolver(r *resolver.Resolver) Option {
	return func(a *Application) { a.resolver = r }
}

// WithRecorder reports lifecycle measurements to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Application) { a.recorder = r }
}

// WithRegistry replaces the plugin registry.
func WithRegistry(r *Registry) Option {
	return func(a *Application) { a.registry = r }
}

// Application is the lifecycle controller. Transitions on one plugin id
// are serialised; different ids proceed in parallel.
type Application struct {
	reader    ArchiveReader
	container Container
	registry  *Registry
	routes    *route.Synchronizer
	resolver  *resolver.Resolver
	recorder  metrics.Recorder
	limited   limitedTable

	props        atomic.Pointer[Properties]
	kindHandlers map[definition.Kind]kindHandler

	mu       sync.RWMutex
	packages map[string]*Package
	locks    sync.Map // id -> *sync.Mutex

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewApplication wires the lifecycle controller. The application installs
// itself as a post-processor of c. A nil props uses DefaultProperties.
func NewApplication(reader ArchiveReader, c Container, table route.RouteTable, props *Properties, opts ...Option) (*Application, error) {
	if props == nil {
		props = DefaultProperties()
	}
	a := &Application{
		reader:    reader,
		container: c,
		registry:  NewRegistry(),
		recorder:  metrics.Nop,
		packages:  make(map[string]*Package),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.props.Store(props)
	a.routes = route.NewSynchronizer(table, func() route.PrefixSettings {
		return a.props.Load().prefixSettings()
	})
	a.kindHandlers = a.handlers()
	if lt, ok := table.(limitedTable); ok {
		a.limited = lt
	}
	if err := a.applyLimiter(props.Limiter); err != nil {
		return nil, err
	}
	c.AddPostProcessor(a)
	return a, nil
}

// Registry returns the plugin registry.
func (a *Application) Registry() *Registry {
	return a.registry
}

// Properties returns the current host properties.
func (a *Application) Properties() *Properties {
	return a.props.Load()
}

func (a *Application) lock(id string) func() {
	m, _ := a.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (a *Application) pkg(id string) (*Package, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.packages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}
	return p, nil
}

func (a *Application) setState(p *Package, s State) Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	p.info.State = s
	switch s {
	case StateStarted:
		p.info.StartedAt = time.Now()
	case StateStopped:
		p.info.StoppedAt = time.Now()
		p.info.Beans = nil
	}
	return p.snapshot()
}

// Install reads the archive at path and adds its package as INSTALLED.
func (a *Application) Install(ctx context.Context, path string) (Info, error) {
	begin := time.Now()
	desc, code, err := a.reader.Open(path)
	if err != nil {
		return Info{}, NewPluginError(filepath.Base(path), "install", err)
	}

	unlock := a.lock(desc.ID)
	defer unlock()

	a.mu.Lock()
	if _, exists := a.packages[desc.ID]; exists {
		a.mu.Unlock()
		_ = code.Close()
		return Info{}, NewPluginError(desc.ID, "install", ErrAlreadyInstalled)
	}
	p := newPackage(desc, path, code)
	a.packages[desc.ID] = p
	info := p.snapshot()
	a.mu.Unlock()

	a.recorder.Transition(desc.ID, StateInstalled.String(), time.Since(begin))
	log.Info().Str("plugin", desc.ID).Str("version", desc.Version).Str("path", path).Msg("plugin installed")
	a.emit(ctx, newEvent(EventInstall, info, nil))
	return info, nil
}

// Start discovers the components of an installed plugin and brings them
// up: controllers are routed and config components are bound before START
// is emitted. A broken type is logged and skipped. A route that cannot be
// registered aborts the start and undoes everything done so far.
// Starting a started plugin does nothing.
func (a *Application) Start(ctx context.Context, id string) error {
	unlock := a.lock(id)
	defer unlock()

	p, err := a.pkg(id)
	if err != nil {
		return err
	}
	if p.info.State == StateStarted {
		return nil
	}
	begin := time.Now()

	entries, err := a.reader.ListEntries(p.info.Path)
	if err != nil {
		return NewPluginError(id, "start", err)
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		name, ok := archive.TypeName(entry)
		if !ok {
			continue
		}
		t, err := a.reader.LoadType(p.code, name)
		if err != nil {
			log.Warn().Err(err).Str("plugin", id).Str("entry", entry).Msg("skip entry")
			continue
		}
		if !definition.Eligible(t) {
			continue
		}
		if err := a.register(id, t, seen); err != nil {
			log.Warn().Err(err).Str("plugin", id).Str("type", name).Msg("skip component")
		}
	}
	a.registerExtensions(id, p.code, seen)

	defs := a.registry.Definitions(id)
	beans := make([]string, 0, len(defs))
	counts := make(map[definition.Kind]int)
	for _, def := range defs {
		if _, err := a.container.GetSingleton(def.BeanName); err != nil {
			if errors.Is(err, route.ErrRouteRegistration) {
				_, derr := a.teardown(id)
				if derr != nil {
					log.Error().Err(derr).Str("plugin", id).Msg("teardown after failed start")
				}
				return NewPluginError(id, "start", err)
			}
			log.Error().Err(err).Str("plugin", id).Str("bean", def.BeanName).Msg("component not created")
			continue
		}
		beans = append(beans, def.BeanName)
		counts[def.Kind]++
	}
	for _, k := range definition.Kinds() {
		a.recorder.Components(id, k.String(), counts[k])
	}

	a.mu.Lock()
	p.info.Beans = beans
	a.mu.Unlock()
	info := a.setState(p, StateStarted)
	a.recorder.Transition(id, StateStarted.String(), time.Since(begin))
	log.Info().Str("plugin", id).Int("components", len(beans)).Dur("took", time.Since(begin)).Msg("plugin started")
	a.emit(ctx, newEvent(EventStart, info, nil))
	return nil
}

// register classifies t and records it in the container and the registry.
func (a *Application) register(id string, t *component.Type, seen map[string]bool) error {
	def, err := definition.Classify(id, t)
	if err != nil {
		return err
	}
	return a.add(id, def, nil, seen)
}

// add records def. A non-nil obj is registered as a ready singleton.
func (a *Application) add(id string, def *definition.Definition, obj any, seen map[string]bool) error {
	if seen[def.BeanName] {
		return fmt.Errorf("duplicate bean %s", def.BeanName)
	}
	if err := a.container.RegisterDefinition(def.BeanName, def); err != nil {
		return err
	}
	if obj != nil {
		if err := a.container.RegisterSingleton(def.BeanName, obj); err != nil {
			a.container.RemoveDefinition(def.BeanName)
			return err
		}
	}
	seen[def.BeanName] = true
	a.registry.Register(id, def)
	log.Debug().Str("plugin", id).Str("bean", def.BeanName).Str("kind", def.Kind.String()).Msg("component registered")
	return nil
}

// registerExtensions adds the extension types the package contributes that
// discovery has not registered already. Only pure extensions are built
// here; a type classified as another kind is created on first use so its
// routes or config binding apply.
func (a *Application) registerExtensions(id string, code archive.CodeContext, seen map[string]bool) {
	for _, t := range code.Extensions() {
		def, err := definition.Classify(id, t)
		if err != nil {
			log.Warn().Err(err).Str("plugin", id).Str("type", t.Name).Msg("skip extension")
			continue
		}
		if seen[def.BeanName] {
			continue
		}
		var obj any
		if def.Kind == definition.Extension {
			if obj, err = a.container.Construct(t); err != nil {
				log.Warn().Err(err).Str("plugin", id).Str("type", t.Name).Msg("skip extension")
				continue
			}
		}
		if err := a.add(id, def, obj, seen); err != nil {
			log.Warn().Err(err).Str("plugin", id).Str("type", t.Name).Msg("skip extension")
		}
	}
}

// Stop tears a started plugin down and emits STOP with the objects that
// were live. Stopping a plugin that is not started does nothing.
func (a *Application) Stop(ctx context.Context, id string) error {
	unlock := a.lock(id)
	defer unlock()
	return a.stopLocked(ctx, id)
}

func (a *Application) stopLocked(ctx context.Context, id string) error {
	p, err := a.pkg(id)
	if err != nil {
		return err
	}
	if p.info.State != StateStarted {
		return nil
	}
	begin := time.Now()

	instances, err := a.teardown(id)
	if err != nil {
		log.Error().Err(err).Str("plugin", id).Msg("some components failed to destroy")
	}
	for _, k := range definition.Kinds() {
		a.recorder.Components(id, k.String(), 0)
	}

	info := a.setState(p, StateStopped)
	a.recorder.Transition(id, StateStopped.String(), time.Since(begin))
	log.Info().Str("plugin", id).Int("components", len(instances)).Msg("plugin stopped")
	a.emit(ctx, newEvent(EventStop, info, instances))
	return nil
}

// teardown removes every definition of id. Routes go first so no request
// reaches an object being destroyed. Destruction failures are collected
// and do not stop the remaining beans.
func (a *Application) teardown(id string) (map[string]any, error) {
	defs := a.registry.RemoveAll(id)
	for _, def := range defs {
		if def.Kind == definition.Controller {
			a.routes.Unregister(def)
		}
	}

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.BeanName)
	}
	instances := make(map[string]any, len(names))
	for _, n := range names {
		if obj, ok := a.container.Live(n); ok {
			instances[n] = obj
		}
	}

	var errs []error
	for _, n := range names {
		a.container.RemoveDefinition(n)
		if err := a.container.DestroySingleton(n); err != nil {
			log.Warn().Err(err).Str("plugin", id).Str("bean", n).Msg("destroy failed")
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrDestruction, n, err))
		}
	}
	return instances, errors.Join(errs...)
}

// Uninstall stops the plugin if needed, forgets it and deletes its
// archive.
func (a *Application) Uninstall(ctx context.Context, id string) error {
	unlock := a.lock(id)
	defer unlock()

	p, err := a.pkg(id)
	if err != nil {
		return err
	}
	if err := a.stopLocked(ctx, id); err != nil {
		return err
	}
	a.forget(id, p)
	info := a.setState(p, StateUninstalled)

	if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("plugin", id).Str("path", info.Path).Msg("delete archive")
	}
	a.recorder.Transition(id, StateUninstalled.String(), 0)
	log.Info().Str("plugin", id).Msg("plugin uninstalled")
	a.emit(ctx, newEvent(EventUninstall, info, nil))
	return nil
}

// forget closes the code of p and drops it from the installed packages.
func (a *Application) forget(id string, p *Package) {
	if err := p.code.Close(); err != nil {
		log.Warn().Err(err).Str("plugin", id).Msg("close code context")
	}
	a.mu.Lock()
	delete(a.packages, id)
	a.mu.Unlock()
}

// Reload reads the archive of plugin id again after it changed on disk.
// The plugin is stopped and forgotten without deleting the file, installed
// from the same path and started if it was started before. A Go plugin
// library cannot be unloaded, so its code is not replaced until restart.
func (a *Application) Reload(ctx context.Context, id string) (Info, error) {
	unlock := a.lock(id)
	p, err := a.pkg(id)
	if err != nil {
		unlock()
		return Info{}, err
	}
	wasStarted := p.info.State == StateStarted
	path := p.info.Path
	if err := a.stopLocked(ctx, id); err != nil {
		unlock()
		return Info{}, err
	}
	a.forget(id, p)
	unlock()
	log.Info().Str("plugin", id).Str("path", path).Msg("reloading plugin")

	info, err := a.Install(ctx, path)
	if err != nil {
		return Info{}, err
	}
	if !wasStarted {
		return info, nil
	}
	if err := a.Start(ctx, info.ID); err != nil {
		return info, err
	}
	return a.Plugin(info.ID)
}

// Init scans the plugin config directory, then installs and starts every
// archive of the plugin directory. Failures of single packages are logged.
func (a *Application) Init(ctx context.Context) error {
	props := a.props.Load()
	if a.resolver != nil {
		if err := a.resolver.Scan(props.ConfigPath); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(props.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("dir", props.Path).Msg("plugin dir not found")
			return nil
		}
		return fmt.Errorf("read plugin dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !archive.IsArchive(e.Name()) {
			continue
		}
		info, err := a.Install(ctx, filepath.Join(props.Path, e.Name()))
		if err != nil {
			log.Error().Err(err).Str("file", e.Name()).Msg("install failed")
			continue
		}
		ids = append(ids, info.ID)
	}
	for _, id := range ids {
		if err := a.Start(ctx, id); err != nil {
			log.Error().Err(err).Str("plugin", id).Msg("start failed")
		}
	}
	log.Info().Int("plugins", len(ids)).Msg("plugin runtime initialized")
	return nil
}

// StartAll starts every plugin that is not started.
func (a *Application) StartAll(ctx context.Context) error {
	var errs []error
	for _, info := range a.Plugins() {
		if err := a.Start(ctx, info.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every started plugin, in reverse id order.
func (a *Application) StopAll(ctx context.Context) error {
	infos := a.Plugins()
	var errs []error
	for i := len(infos) - 1; i >= 0; i-- {
		if err := a.Stop(ctx, infos[i].ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plugins lists the installed packages ordered by id.
func (a *Application) Plugins() []Info {
	a.mu.RLock()
	defer a.mu.RUnlock()
	infos := make([]Info, 0, len(a.packages))
	for _, p := range a.packages {
		infos = append(infos, p.snapshot())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Plugin returns the package with id.
func (a *Application) Plugin(id string) (Info, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.packages[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}
	return p.snapshot(), nil
}

// Entry returns the raw bytes of an archive entry of plugin id. A missing
// entry yields empty content.
func (a *Application) Entry(id, name string) ([]byte, error) {
	info, err := a.Plugin(id)
	if err != nil {
		return nil, err
	}
	data, err := a.reader.ReadBytes(info.Path, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []byte{}, nil
		}
		return nil, err
	}
	return data, nil
}

// byPath finds the installed package read from path.
func (a *Application) byPath(path string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for id, p := range a.packages {
		if p.info.Path == path {
			return id, true
		}
	}
	return "", false
}
