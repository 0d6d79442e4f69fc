// Package metrics exposes the runtime's prometheus collectors.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Policy defines how values of a metric combine over time, and so which
// prometheus collector backs it.
type Policy int

const (
	PolicyNone      Policy = iota // No specific policy specified
	PolicySet                     // Instantaneous value - last value wins (gauge)
	PolicySum                     // Sum of all values (counter)
	PolicyStopwatch               // Timer - measures duration in seconds (histogram)
)

func (p Policy) String() string {
	switch p {
	case PolicySet:
		return "set"
	case PolicySum:
		return "sum"
	case PolicyStopwatch:
		return "stopwatch"
	default:
		return "none"
	}
}

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs, such as the
// host name or the environment. Dimensions become constant labels on every
// collector of a registry.
type Dimension map[string]string

// Labels converts d to prometheus constant labels.
func (d Dimension) Labels() prometheus.Labels {
	if len(d) == 0 {
		return nil
	}
	out := make(prometheus.Labels, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Spec declares one metric.
type Spec struct {
	Name   string
	Help   string
	Policy Policy
	Labels []string
}

// build creates the collector matching s.Policy.
func (s Spec) build(namespace string, dim Dimension) (prometheus.Collector, error) {
	switch s.Policy {
	case PolicySet:
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: s.Name, Help: s.Help, ConstLabels: dim.Labels(),
		}, s.Labels), nil
	case PolicySum:
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: s.Name, Help: s.Help, ConstLabels: dim.Labels(),
		}, s.Labels), nil
	case PolicyStopwatch:
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: s.Name, Help: s.Help, ConstLabels: dim.Labels(),
			Buckets: prometheus.DefBuckets,
		}, s.Labels), nil
	default:
		return nil, fmt.Errorf("metric %s: unsupported policy %s", s.Name, s.Policy)
	}
}
