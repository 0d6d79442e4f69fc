// Package route owns the live HTTP route table that plugin controllers are
// published into, and the algorithm that derives their paths.
package route

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lcx/hotplug/component"
)

// ErrRouteRegistration is returned for malformed route entries and empty
// path-prefix overrides.
var ErrRouteRegistration = errors.New("route registration failed")

// Entry is one request mapping: a unit that is registered and unregistered
// atomically. Its identity is its pointer.
type Entry struct {
	Methods  []string
	Paths    []string
	Headers  []string
	Params   []string
	Consumes []string
	Produces []string
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %s", strings.Join(e.Methods, ","), strings.Join(e.Paths, ","))
}

// Registration is an entry bound to the instance and method serving it.
type Registration struct {
	Entry  *Entry
	Target any
	Method *component.HandlerMethod
}

// RouteTable is the route table contract the synchronizer drives.
type RouteTable interface { //nolint:revive
	CurrentEntries() []Registration
	Register(entry *Entry, target any, method *component.HandlerMethod) error
	Unregister(entry *Entry)
}

// NewEntry builds the entry of m for the given final paths.
func NewEntry(m *component.HandlerMethod, paths []string) *Entry {
	return &Entry{
		Methods:  append([]string(nil), m.Methods()...),
		Paths:    paths,
		Headers:  append([]string(nil), m.Mapping.Headers...),
		Params:   append([]string(nil), m.Mapping.Params...),
		Consumes: append([]string(nil), m.Mapping.Consumes...),
		Produces: append([]string(nil), m.Mapping.Produces...),
	}
}
