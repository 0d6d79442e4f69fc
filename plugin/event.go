package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lcx/hotplug/log"
)

// EventType is the transition a StateEvent reports.
type EventType string

const (
	EventStart     EventType = "START"
	EventStop      EventType = "STOP"
	EventInstall   EventType = "INSTALL"
	EventUninstall EventType = "UNINSTALL"
)

// StateEvent is an immutable notification of a finished transition.
type StateEvent struct {
	ID     string
	Type   EventType
	Plugin Info
	Time   time.Time
	// Instances holds the live objects of a stopping plugin by bean name.
	// It is nil for every other event.
	Instances map[string]any
}

func newEvent(typ EventType, info Info, instances map[string]any) StateEvent {
	return StateEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Plugin:    info,
		Time:      time.Now(),
		Instances: instances,
	}
}

// Listener receives state events synchronously, in registration order.
type Listener interface {
	OnStateChange(ctx context.Context, ev StateEvent) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev StateEvent) error

func (f ListenerFunc) OnStateChange(ctx context.Context, ev StateEvent) error {
	return f(ctx, ev)
}

// AddListener appends l. Listeners cannot be removed.
func (a *Application) AddListener(l Listener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	a.listeners = append(a.listeners, l)
}

// emit runs every listener. A failing or panicking listener is logged and
// does not stop the others.
func (a *Application) emit(ctx context.Context, ev StateEvent) {
	a.listenersMu.RLock()
	listeners := append([]Listener(nil), a.listeners...)
	a.listenersMu.RUnlock()

	for i, l := range listeners {
		if err := notify(ctx, l, ev); err != nil {
			log.Error().Err(err).Int("listener", i).Str("plugin", ev.Plugin.ID).
				Str("event", string(ev.Type)).Msg("state listener failed")
		}
	}
}

func notify(ctx context.Context, l Listener, ev StateEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.OnStateChange(ctx, ev)
}
