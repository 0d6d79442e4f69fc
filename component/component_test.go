package component

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct {
	Greeting string
}

func (g *greeter) Hello(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, g.Greeting)
}

type speaker interface {
	Speak() string
}

func TestDefineStruct(t *testing.T) {
	typ := Define[greeter]("demo.web.Greeter", AsComponent("hi"))

	assert.False(t, typ.Abstract)
	assert.True(t, typ.Tagged())
	assert.Equal(t, "Greeter", typ.SimpleName())
	assert.Equal(t, "hi", typ.Component.Name)

	obj := typ.New()
	_, ok := obj.(*greeter)
	require.True(t, ok)
	assert.True(t, typ.AssignableFrom(obj))
	assert.False(t, typ.AssignableFrom(&struct{}{}))
	assert.False(t, typ.AssignableFrom(nil))
}

func TestDefinePointerAndInterface(t *testing.T) {
	ptr := Define[*greeter]("demo.Greeter")
	_, ok := ptr.New().(*greeter)
	assert.True(t, ok)
	assert.False(t, ptr.Tagged())

	iface := Define[speaker]("demo.Speaker", AsExtension("speech"))
	assert.True(t, iface.Abstract)
	assert.Nil(t, iface.New)
}

func TestSimpleNameFallsBackToGoType(t *testing.T) {
	typ := Define[greeter]("")
	assert.Equal(t, "greeter", typ.SimpleName())
	assert.Equal(t, "Flat", Define[greeter]("Flat").SimpleName())
}

func TestControllerOptions(t *testing.T) {
	hello := Handle("Hello", Method((*greeter).Hello)).Get("/hello").Produces("text/plain")
	typ := Define[greeter]("demo.web.Hello",
		AsController("/greet"),
		WithPathPrefix("hi"),
		WithHandlers(hello),
	)

	require.NotNil(t, typ.Mapping)
	assert.Equal(t, []string{"/greet"}, typ.Mapping.Paths)
	assert.Equal(t, "hi", typ.PathPrefix.Value)
	require.Len(t, typ.Handlers, 1)
	assert.Same(t, hello, typ.Handlers[0])
	assert.Equal(t, []string{http.MethodGet}, hello.Methods())

	bare := Define[greeter]("demo.web.Bare", AsBareController())
	assert.NotNil(t, bare.Controller)
	assert.Nil(t, bare.Mapping)
}

func TestHandlerMethodDefaults(t *testing.T) {
	m := Handle("Any", nil)
	assert.Equal(t, DefaultMethods, m.Methods())

	m.Request([]string{http.MethodPatch}, "/p").Headers("X-A=1").Params("!debug").Consumes("application/json")
	assert.Equal(t, []string{http.MethodPatch}, m.Methods())
	assert.Equal(t, []string{"/p"}, m.Mapping.Paths)
	assert.Equal(t, []string{"X-A=1"}, m.Mapping.Headers)
	assert.Equal(t, []string{"!debug"}, m.Mapping.Params)
	assert.Equal(t, []string{"application/json"}, m.Mapping.Consumes)

	assert.Equal(t, []string{http.MethodPost}, Handle("p", nil).Post("/").Mapping.Methods)
	assert.Equal(t, []string{http.MethodPut}, Handle("p", nil).Put("/").Mapping.Methods)
	assert.Equal(t, []string{http.MethodDelete}, Handle("p", nil).Delete("/").Mapping.Methods)
}

func TestMethodBindsTarget(t *testing.T) {
	bind := Method((*greeter).Hello)

	rec := httptest.NewRecorder()
	bind(&greeter{Greeting: "hey"})(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "hey", rec.Body.String())

	rec = httptest.NewRecorder()
	bind("not a greeter")(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCatalog(t *testing.T) {
	a := Define[greeter]("demo.A", AsComponent(""))
	ext := Define[greeter]("demo.Ext", AsExtension("greeting"))
	abstractExt := Define[speaker]("demo.Speaker", AsExtension("speech"))

	c := NewCatalog(a, ext, abstractExt)
	assert.Equal(t, []string{"demo.A", "demo.Ext", "demo.Speaker"}, c.Names())

	got, ok := c.Lookup("demo.Ext")
	require.True(t, ok)
	assert.Same(t, ext, got)
	_, ok = c.Lookup("demo.Missing")
	assert.False(t, ok)

	assert.Equal(t, []*Type{ext}, c.Extensions())

	assert.Error(t, c.Add(Define[greeter]("demo.A")))
	assert.Error(t, c.Add(nil))
	assert.Panics(t, func() { NewCatalog(a, a) })
}
