// Package metrics exposes Prometheus instrumentation for the sync
// client: fetch activity, snapshot churn, transport transitions, and
// send outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the client registers. All collectors are
// registered on the registry passed to New, so tests can use a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal      *prometheus.CounterVec
	FetchErrorsTotal  *prometheus.CounterVec
	SnapshotsApplied  prometheus.Counter
	SnapshotsSkipped  prometheus.Counter
	TransportState    prometheus.Gauge
	FailoversTotal    prometheus.Counter
	ProbeResultsTotal *prometheus.CounterVec
	SendsTotal        *prometheus.CounterVec
}

// New creates and registers all collectors on reg. Passing nil creates a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "fetches_total",
			Help:      "Snapshot fetches attempted, by source channel.",
		}, []string{"source"}),

		FetchErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "fetch_errors_total",
			Help:      "Snapshot fetches that failed, by source channel.",
		}, []string{"source"}),

		SnapshotsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "snapshots_applied_total",
			Help:      "Snapshots that changed the store and were published.",
		}),

		SnapshotsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "snapshots_skipped_total",
			Help:      "Snapshots suppressed because they matched the current state.",
		}),

		TransportState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedwire",
			Name:      "transport_state",
			Help:      "Active transport: 0 detecting, 1 reactive, 2 polling.",
		}),

		FailoversTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "failovers_total",
			Help:      "Reactive-to-polling failovers triggered by send failures.",
		}),

		ProbeResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "probe_results_total",
			Help:      "Attachment capability probe outcomes.",
		}, []string{"result"}),

		SendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedwire",
			Name:      "sends_total",
			Help:      "Message sends, by transport and outcome.",
		}, []string{"transport", "outcome"}),
	}
}

// Registry returns the registry the collectors are registered on, for
// mounting a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
