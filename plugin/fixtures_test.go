package plugin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcx/hotplug/archive"
	"github.com/lcx/hotplug/component"
	"github.com/lcx/hotplug/container"
	"github.com/lcx/hotplug/resolver"
	"github.com/lcx/hotplug/route"
)

type shopConfig struct {
	Greeting string `mapstructure:"greeting"`
	Limit    int    `mapstructure:"limit"`
}

type helloController struct{}

func (c *helloController) Hello(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("hello"))
}

type service struct {
	destroyed bool
	fail      bool
}

func (s *service) Destroy() error {
	s.destroyed = true
	if s.fail {
		return errors.New("still busy")
	}
	return nil
}

type greeter interface {
	Greet() string
}

type greeterExt struct{}

func (greeterExt) Greet() string { return "hello" }

type plain struct{}

// shopCatalog builds the component types of a test plugin named after ns.
func shopCatalog(ns string) *component.Catalog {
	return component.NewCatalog(
		component.Define[helloController](ns+".web.HelloController",
			component.AsController("/greet"),
			component.WithHandlers(component.Handle("hello", component.Method((*helloController).Hello)).Get("/hello")),
		),
		component.Define[shopConfig](ns+".conf.ShopConfig", component.AsConfig("")),
		component.Define[service](ns+".svc.Service", component.AsComponent("")),
		component.Define[plain](ns+".svc.Plain"),
		component.Define[greeterExt](ns+".ext.Greeter", component.AsExtension("greeting")),
	)
}

var shopTypes = []string{"web.HelloController", "conf.ShopConfig", "svc.Service", "svc.Plain"}

type harness struct {
	t         *testing.T
	app       *Application
	reader    *archive.Reader
	container *container.Container
	table     *route.Table
	resolver  *resolver.Resolver
	dir       string
	events    *recorder
}

type recorder struct {
	mu     sync.Mutex
	events []StateEvent
}

func (r *recorder) OnStateChange(_ context.Context, ev StateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last() StateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newHarness(t *testing.T, props *Properties) *harness {
	t.Helper()
	dir := t.TempDir()
	if props == nil {
		props = DefaultProperties()
	}
	props.Path = filepath.Join(dir, "plugins")
	props.ConfigPath = filepath.Join(dir, "configs")
	require.NoError(t, os.MkdirAll(props.Path, 0o755))
	require.NoError(t, os.MkdirAll(props.ConfigPath, 0o755))

	h := &harness{
		t:         t,
		reader:    archive.NewReader(dir),
		container: container.New(),
		table:     route.NewTable(),
		resolver:  resolver.New(resolver.Map(map[string]string{"WHO": "there"})),
		dir:       dir,
		events:    &recorder{},
	}
	app, err := NewApplication(h.reader, h.container, h.table, props, WithResolver(h.resolver))
	require.NoError(t, err)
	app.AddListener(h.events)
	h.app = app
	return h
}

// pack writes an archive for plugin id holding the types of catalog ns.
func (h *harness) pack(id, ns string, types ...string) string {
	h.t.Helper()
	h.reader.RegisterCatalog(ns, shopCatalog(ns))
	return h.packCatalog(id, ns, "1.0.0", types...)
}

func (h *harness) writeConfig(name, content string) {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(filepath.Join(h.app.Properties().ConfigPath, name), []byte(content), 0o644))
	require.NoError(h.t, h.resolver.Scan(h.app.Properties().ConfigPath))
}

func (h *harness) get(path string) (int, string) {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(h.t, err)
	rec := httptest.NewRecorder()
	h.table.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

// packCatalog writes an archive for plugin id resolving its types from the
// already registered catalog ns.
func (h *harness) packCatalog(id, ns, version string, types ...string) string {
	h.t.Helper()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, ns+"."+t)
	}
	path := filepath.Join(h.app.Properties().Path, id+".tar")
	require.NoError(h.t, archive.WritePackage(path, &archive.Descriptor{ID: id, Version: version, Catalog: ns}, names...))
	return path
}
