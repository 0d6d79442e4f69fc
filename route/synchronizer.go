package route

import (
	"fmt"

	"github.com/lcx/hotplug/component"
	"github.com/lcx/hotplug/definition"
	"github.com/lcx/hotplug/log"
)

// Synchronizer keeps the route table in step with controller definitions.
// It holds no state besides the table handle.
type Synchronizer struct {
	table    RouteTable
	settings func() PrefixSettings
}

// NewSynchronizer drives table. settings is read on every registration so
// prefix changes apply to the next start.
func NewSynchronizer(table RouteTable, settings func() PrefixSettings) *Synchronizer {
	return &Synchronizer{table: table, settings: settings}
}

// Register publishes every handler of def served by target. Entries left
// over for the same method are removed first. If any entry fails, the ones
// published by this call are withdrawn again.
func (s *Synchronizer) Register(def *definition.Definition, target any) error {
	if def.Controller == nil {
		return fmt.Errorf("%w: %s is not a controller", ErrRouteRegistration, def.BeanName)
	}
	prefix, err := ComputePrefix(def, s.settings())
	if err != nil {
		return err
	}

	registered := make([]*Entry, 0, len(def.Controller.Handlers))
	for _, h := range def.Controller.Handlers {
		s.unregisterMethod(h)
		entry := NewEntry(h, BuildPaths(def.Controller.ClassPaths, h.Mapping.Paths, prefix))
		if err := s.table.Register(entry, target, h); err != nil {
			for _, e := range registered {
				s.table.Unregister(e)
			}
			return fmt.Errorf("%s.%s: %w", def.BeanName, h.Name, err)
		}
		registered = append(registered, entry)
		log.Info().Str("bean", def.BeanName).Str("method", h.Name).Str("route", entry.String()).Msg("register route")
	}
	return nil
}

// Unregister removes every entry whose method belongs to def, matched by
// method identity. It returns how many entries were removed; calling it
// again is a no-op.
func (s *Synchronizer) Unregister(def *definition.Definition) int {
	if def.Controller == nil {
		return 0
	}
	n := 0
	for _, reg := range s.table.CurrentEntries() {
		if def.Controller.Owns(reg.Method) {
			s.table.Unregister(reg.Entry)
			log.Info().Str("bean", def.BeanName).Str("route", reg.Entry.String()).Msg("unregister route")
			n++
		}
	}
	return n
}

func (s *Synchronizer) unregisterMethod(m *component.HandlerMethod) {
	for _, reg := range s.table.CurrentEntries() {
		if reg.Method == m {
			s.table.Unregister(reg.Entry)
		}
	}
}
