package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plugind"

var (
	transitionsSpec = Spec{
		Name:   "plugin_transitions_total",
		Help:   "Plugin state transitions by state",
		Policy: PolicySum,
		Labels: []string{"plugin", "state"},
	}
	transitionDurationSpec = Spec{
		Name:   "plugin_transition_duration_seconds",
		Help:   "Duration of plugin state transitions",
		Policy: PolicyStopwatch,
		Labels: []string{"state"},
	}
	componentsSpec = Spec{
		Name:   "components",
		Help:   "Registered components by plugin and kind",
		Policy: PolicySet,
		Labels: []string{"plugin", "kind"},
	}
	routesSpec = Spec{
		Name:   "live_routes",
		Help:   "Route entries in the live table",
		Policy: PolicySet,
	}
	limitedSpec = Spec{
		Name:   "limited_requests_total",
		Help:   "Requests rejected by the request limiter",
		Policy: PolicySum,
		Labels: []string{"limiter"},
	}
)

// Recorder receives runtime measurements.
type Recorder interface {
	Transition(pluginID, state string, took time.Duration)
	Components(pluginID, kind string, n int)
	LiveRoutes(n int)
	Limited(limiter string)
}

// Nop discards every measurement.
var Nop Recorder = nopRecorder{}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string, time.Duration) {}
func (nopRecorder) Components(string, string, int)           {}
func (nopRecorder) LiveRoutes(int)                           {}
func (nopRecorder) Limited(string)                           {}

// Collectors is the prometheus backed Recorder. It owns its registry so
// several hosts can live in one process, as tests do.
type Collectors struct {
	registry           *prometheus.Registry
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	components         *prometheus.GaugeVec
	routes             *prometheus.GaugeVec
	limited            *prometheus.CounterVec
}

// New registers the runtime collectors plus the Go and process collectors
// on a fresh registry.
func New(dim Dimension) (*Collectors, error) {
	build := func(s Spec) prometheus.Collector {
		c, err := s.build(namespace, dim)
		if err != nil {
			panic(err)
		}
		return c
	}
	c := &Collectors{
		registry:           prometheus.NewRegistry(),
		transitions:        build(transitionsSpec).(*prometheus.CounterVec),
		transitionDuration: build(transitionDurationSpec).(*prometheus.HistogramVec),
		components:         build(componentsSpec).(*prometheus.GaugeVec),
		routes:             build(routesSpec).(*prometheus.GaugeVec),
		limited:            build(limitedSpec).(*prometheus.CounterVec),
	}
	err := errors.Join(
		c.registry.Register(c.transitions),
		c.registry.Register(c.transitionDuration),
		c.registry.Register(c.components),
		c.registry.Register(c.routes),
		c.registry.Register(c.limited),
		c.registry.Register(collectors.NewGoCollector()),
		c.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collectors) Transition(pluginID, state string, took time.Duration) {
	c.transitions.WithLabelValues(pluginID, state).Inc()
	c.transitionDuration.WithLabelValues(state).Observe(took.Seconds())
}

func (c *Collectors) Components(pluginID, kind string, n int) {
	c.components.WithLabelValues(pluginID, kind).Set(float64(n))
}

func (c *Collectors) LiveRoutes(n int) {
	c.routes.WithLabelValues().Set(float64(n))
}

func (c *Collectors) Limited(limiter string) {
	c.limited.WithLabelValues(limiter).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
