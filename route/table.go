package route

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/lcx/hotplug/component"
	"github.com/lcx/hotplug/metrics"
)

type binding struct {
	Registration
	handler http.Handler
}

// Table is the live route table. Mutations rebuild an immutable gorilla/mux
// router and publish it atomically, so a request is dispatched either by
// the router before a mutation or by the one after it, never by a half
// updated one.
type Table struct {
	mu       sync.Mutex
	bindings []*binding
	router   atomic.Pointer[mux.Router]
	limiter  atomic.Pointer[limiterHolder]
	fallback http.Handler
	recorder metrics.Recorder
}

type limiterHolder struct {
	l Limiter
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithFallback serves requests no route matches.
func WithFallback(h http.Handler) TableOption {
	return func(t *Table) { t.fallback = h }
}

func WithRecorder(r metrics.Recorder) TableOption {
	return func(t *Table) { t.recorder = r }
}

func NewTable(opts ...TableOption) *Table {
	t := &Table{
		fallback: http.NotFoundHandler(),
		recorder: metrics.Nop,
	}
	for _, opt := range opts {
		opt(t)
	}
	r, _ := t.build(nil)
	t.router.Store(r)
	return t
}

// CurrentEntries returns the registrations in registration order.
func (t *Table) CurrentEntries() []Registration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Registration, 0, len(t.bindings))
	for _, b := range t.bindings {
		out = append(out, b.Registration)
	}
	return out
}

// Register publishes entry, served by method bound to target. The handler
// is bound here, after target has been fully constructed.
func (t *Table) Register(entry *Entry, target any, method *component.HandlerMethod) error {
	if entry == nil || method == nil || method.Bind == nil {
		return fmt.Errorf("%w: incomplete registration", ErrRouteRegistration)
	}
	if len(entry.Paths) == 0 {
		return fmt.Errorf("%w: %s has no path", ErrRouteRegistration, method.Name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.bindings {
		if b.Entry == entry {
			return fmt.Errorf("%w: entry %s already registered", ErrRouteRegistration, entry)
		}
	}

	next := append(append([]*binding(nil), t.bindings...), &binding{
		Registration: Registration{Entry: entry, Target: target, Method: method},
		handler:      method.Bind(target),
	})
	r, err := t.build(next)
	if err != nil {
		return err
	}
	t.bindings = next
	t.publish(r)
	return nil
}

// Unregister removes entry. An absent entry is a no-op.
func (t *Table) Unregister(entry *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]*binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		if b.Entry != entry {
			next = append(next, b)
		}
	}
	if len(next) == len(t.bindings) {
		return
	}
	// Every remaining binding was accepted before, so the build cannot fail.
	r, _ := t.build(next)
	t.bindings = next
	t.publish(r)
}

// SetLimiter installs l in front of dispatch. A nil l removes the limiter.
func (t *Table) SetLimiter(l Limiter) {
	if l == nil {
		t.limiter.Store(nil)
		return
	}
	t.limiter.Store(&limiterHolder{l: l})
}

func (t *Table) publish(r *mux.Router) {
	t.router.Store(r)
	t.recorder.LiveRoutes(len(t.bindings))
}

func (t *Table) build(bindings []*binding) (*mux.Router, error) {
	r := mux.NewRouter()
	r.NotFoundHandler = t.fallback
	for _, b := range bindings {
		for _, p := range b.Entry.Paths {
			route := b.Entry.apply(r.Handle(leadingSlash(p), b.handler))
			if err := route.GetError(); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrRouteRegistration, p, err)
			}
		}
	}
	return r, nil
}

func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h := t.limiter.Load(); h != nil && !h.l.Admit(r) {
		t.recorder.Limited(h.l.Name())
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	t.router.Load().ServeHTTP(w, r)
}

func leadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
