// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the stream.
type Metrics struct {
	// Feed metrics
	FeedEventsReceived *prometheus.CounterVec
	FeedDecodeErrors   prometheus.Counter
	FeedReconnects     prometheus.Counter
	FeedLastEventAt    prometheus.Gauge

	// Classification metrics
	EventsClassified     *prometheus.CounterVec
	ClassificationErrors *prometheus.CounterVec
	EventsWithoutPolicy  prometheus.Counter

	// Tracker metrics
	TrackerResolutions prometheus.Counter
	TrackerDuplicates  prometheus.Counter
	TrackerSuppressed  prometheus.Counter
	TrackerEvictions   prometheus.Counter
	TrackerInFlight    prometheus.Gauge

	// Valuation metrics
	ValuationsComputed    *prometheus.CounterVec
	ValuationsUnavailable *prometheus.CounterVec

	// Dispatch metrics
	DispatchOutcomes *prometheus.CounterVec
	DispatchLatency  *prometheus.HistogramVec

	// Sink metrics
	SinkBatchSize   prometheus.Histogram
	SinkWriteErrors *prometheus.CounterVec

	// Stage latency
	StageLatency *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered against reg. Binaries pass
// prometheus.DefaultRegisterer; tests use a fresh registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "avm_dex_stream"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Feed metrics
		FeedEventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of raw events received by protocol and state",
		}, []string{"protocol", "state"}),
		FeedDecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of upstream frames that failed to decode",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of upstream reconnect attempts",
		}),
		FeedLastEventAt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last event received",
		}),

		// Classification metrics
		EventsClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "events_total",
			Help:      "Total number of classified events by protocol, amm and kind",
		}, []string{"protocol", "amm", "kind"}),
		ClassificationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "errors_total",
			Help:      "Total number of classification failures by reason",
		}, []string{"reason"}),
		EventsWithoutPolicy: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "no_policy_total",
			Help:      "Total number of events with no registered policy",
		}),

		// Tracker metrics
		TrackerResolutions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "resolutions_total",
			Help:      "Total number of events resolved for emission",
		}),
		TrackerDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "duplicates_total",
			Help:      "Total number of duplicate observations dropped",
		}),
		TrackerSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "suppressed_total",
			Help:      "Total number of confirmations suppressed for bad data",
		}),
		TrackerEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "evictions_total",
			Help:      "Total number of pending events evicted without confirmation",
		}),
		TrackerInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "in_flight",
			Help:      "Current number of pending events awaiting confirmation",
		}),

		// Valuation metrics
		ValuationsComputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "computed_total",
			Help:      "Total number of events valued in USD by kind",
		}, []string{"kind"}),
		ValuationsUnavailable: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "unavailable_total",
			Help:      "Total number of events left without a USD valuation by kind",
		}, []string{"kind"}),

		// Dispatch metrics
		DispatchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Total number of dispatch attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		DispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "Dispatch delivery latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		// Sink metrics
		SinkBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sinks",
			Name:      "batch_size",
			Help:      "Number of rows per analytical batch insert",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
		}),
		SinkWriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sinks",
			Name:      "write_errors_total",
			Help:      "Total number of sink write errors by sink",
		}, []string{"sink"}),

		// Stage latency
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Per-stage processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
