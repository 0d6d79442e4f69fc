package component

import (
	"fmt"
	"net/http"
	"slices"
)

// DefaultMethods are used when a mapping names no HTTP method.
var DefaultMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// Mapping holds request-mapping attributes. Header and param predicates
// take the forms "k=v", "k" and "!k".
type Mapping struct {
	Paths    []string
	Methods  []string
	Headers  []string
	Params   []string
	Consumes []string
	Produces []string
}

// HandlerFunc binds a live component instance to an http handler.
type HandlerFunc func(target any) http.HandlerFunc

// HandlerMethod is a request-mapped method of a controller. The pointer is
// the method identity used to find its routes in the live table.
type HandlerMethod struct {
	Name    string
	Mapping Mapping
	Bind    HandlerFunc
}

// Handle starts a handler method definition. Without a verb call the
// method answers GET, POST, PUT and DELETE.
func Handle(name string, bind HandlerFunc) *HandlerMethod {
	return &HandlerMethod{Name: name, Bind: bind}
}

// Method builds a HandlerFunc from a typed method value, e.g.
// component.Method((*Hello).Greet).
func Method[T any](fn func(T, http.ResponseWriter, *http.Request)) HandlerFunc {
	return func(target any) http.HandlerFunc {
		t, ok := target.(T)
		if !ok {
			return func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, fmt.Sprintf("handler target is %T", target), http.StatusInternalServerError)
			}
		}
		return func(w http.ResponseWriter, r *http.Request) { fn(t, w, r) }
	}
}

// Clone returns a copy with a new identity and its own mapping slices.
func (m *HandlerMethod) Clone() *HandlerMethod {
	c := *m
	c.Mapping = Mapping{
		Paths:    slices.Clone(m.Mapping.Paths),
		Methods:  slices.Clone(m.Mapping.Methods),
		Headers:  slices.Clone(m.Mapping.Headers),
		Params:   slices.Clone(m.Mapping.Params),
		Consumes: slices.Clone(m.Mapping.Consumes),
		Produces: slices.Clone(m.Mapping.Produces),
	}
	return &c
}

func (m *HandlerMethod) verb(method string, paths []string) *HandlerMethod {
	m.Mapping.Methods = []string{method}
	m.Mapping.Paths = paths
	return m
}

func (m *HandlerMethod) Get(paths ...string) *HandlerMethod {
	return m.verb(http.MethodGet, paths)
}

func (m *HandlerMethod) Post(paths ...string) *HandlerMethod {
	return m.verb(http.MethodPost, paths)
}

func (m *HandlerMethod) Put(paths ...string) *HandlerMethod {
	return m.verb(http.MethodPut, paths)
}

func (m *HandlerMethod) Delete(paths ...string) *HandlerMethod {
	return m.verb(http.MethodDelete, paths)
}

// Request maps paths for an explicit set of methods.
func (m *HandlerMethod) Request(methods []string, paths ...string) *HandlerMethod {
	m.Mapping.Methods = methods
	m.Mapping.Paths = paths
	return m
}

func (m *HandlerMethod) Headers(h ...string) *HandlerMethod {
	m.Mapping.Headers = append(m.Mapping.Headers, h...)
	return m
}

func (m *HandlerMethod) Params(p ...string) *HandlerMethod {
	m.Mapping.Params = append(m.Mapping.Params, p...)
	return m
}

func (m *HandlerMethod) Consumes(c ...string) *HandlerMethod {
	m.Mapping.Consumes = append(m.Mapping.Consumes, c...)
	return m
}

func (m *HandlerMethod) Produces(p ...string) *HandlerMethod {
	m.Mapping.Produces = append(m.Mapping.Produces, p...)
	return m
}

// Methods returns the effective HTTP methods.
func (m *HandlerMethod) Methods() []string {
	if len(m.Mapping.Methods) == 0 {
		return DefaultMethods
	}
	return m.Mapping.Methods
}

func (m *HandlerMethod) String() string {
	return m.Name
}
