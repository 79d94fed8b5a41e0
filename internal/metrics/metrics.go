// Package metrics provides Prometheus metrics for form stores.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
)

// Collector holds all Prometheus metrics for a form store. It implements
// engine.Observer.
type Collector struct {
	// Transaction metrics
	Dispatches    *prometheus.CounterVec
	Bailouts      *prometheus.CounterVec
	BailoutSteps  prometheus.Histogram
	ValueWrites   *prometheus.CounterVec
	Notifications prometheus.Counter

	// Validation metrics
	Validations   *prometheus.CounterVec
	AsyncStarts   *prometheus.CounterVec
	AsyncDiscards *prometheus.CounterVec
	AsyncInFlight prometheus.Gauge
	MountedFields prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "dispatches_total",
				Help:      "Total number of reaction edges walked",
			},
			[]string{"event"},
		),
		Bailouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "bailouts_total",
				Help:      "Total number of transactions that exhausted their step budget",
			},
			[]string{"field"},
		),
		BailoutSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "formstate",
				Name:      "bailout_steps",
				Help:      "Steps attempted by transactions that bailed out",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		ValueWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "value_writes_total",
				Help:      "Total number of real value changes",
			},
			[]string{"field"},
		),
		Notifications: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "notifications_total",
				Help:      "Total number of transactions that notified listeners",
			},
		),

		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "validations_total",
				Help:      "Total number of validation state transitions by resulting type",
			},
			[]string{"field", "type"},
		),
		AsyncStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "async_starts_total",
				Help:      "Total number of async responder runs started",
			},
			[]string{"field"},
		),
		AsyncDiscards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formstate",
				Name:      "async_discards_total",
				Help:      "Total number of async results dropped as cancelled or stale",
			},
			[]string{"field"},
		),
		AsyncInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "formstate",
				Name:      "async_in_flight",
				Help:      "Number of fields currently in the validating state",
			},
		),
		MountedFields: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "formstate",
				Name:      "mounted_fields",
				Help:      "Number of fields with at least one consumer",
			},
		),
	}
}

// Observe updates metrics for one engine record.
func (c *Collector) Observe(r engine.Record) {
	name := string(r.Field)

	switch r.Kind {
	case engine.RecordValue:
		c.ValueWrites.WithLabelValues(name).Inc()
	case engine.RecordDispatch:
		c.Dispatches.WithLabelValues(r.Event.String()).Inc()
	case engine.RecordValidation:
		c.Validations.WithLabelValues(name, r.To.String()).Inc()
		// Track fields entering and leaving the validating state
		if r.To == field.TypeValidating {
			c.AsyncInFlight.Inc()
		}
		if r.From == field.TypeValidating {
			c.AsyncInFlight.Dec()
		}
	case engine.RecordAsyncStart:
		c.AsyncStarts.WithLabelValues(name).Inc()
	case engine.RecordAsyncDiscard:
		c.AsyncDiscards.WithLabelValues(name).Inc()
	case engine.RecordBailout:
		c.Bailouts.WithLabelValues(name).Inc()
		c.BailoutSteps.Observe(float64(r.Steps))
	case engine.RecordMount:
		c.MountedFields.Inc()
	case engine.RecordUnmount:
		c.MountedFields.Dec()
	case engine.RecordNotify:
		c.Notifications.Inc()
	}
}
