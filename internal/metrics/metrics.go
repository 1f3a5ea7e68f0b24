// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the monitor's collectors.
type Metrics struct {
	events         *prometheus.CounterVec
	dispatchErrors prometheus.Counter
	storeErrors    prometheus.Counter
	duration       prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_events_total",
			Help: "Processed message events by outcome.",
		}, []string{"outcome"}),
		dispatchErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_dispatch_errors_total",
			Help: "Notifications that could not be delivered.",
		}),
		storeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_store_errors_total",
			Help: "Failed watermark reads and writes.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_event_duration_seconds",
			Help:    "Time spent handling a single event.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveEvent records one handled event.
func (m *Metrics) ObserveEvent(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
	m.duration.Observe(took.Seconds())
}

// DispatchError counts a failed notification.
func (m *Metrics) DispatchError() {
	if m == nil {
		return
	}
	m.dispatchErrors.Inc()
}

// StoreError counts a failed watermark read or write.
func (m *Metrics) StoreError() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}
