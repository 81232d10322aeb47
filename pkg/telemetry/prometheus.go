package telemetry

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports request durations and usage event counts.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// NewPrometheusRecorder registers its collectors on a private registry.
func NewPrometheusRecorder(cfg MetricsConfig) (*PrometheusRecorder, error) {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "ghclient"
	}

	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event", "method", "outcome"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_events_total",
				Help:      "Total number of named usage events",
			},
			[]string{"event", "outcome", "error_id"},
		),
	}

	for _, c := range []prometheus.Collector{r.duration, r.events} {
		if err := r.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering metrics collector")
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) RecordRequest(_ context.Context, record RequestRecord) error {
	if record.Event == "" {
		return errors.New("usage event without a name")
	}
	r.duration.WithLabelValues(record.Event, record.Method, string(record.Outcome)).
		Observe(record.Duration.Seconds())
	r.events.WithLabelValues(record.Event, string(record.Outcome), record.ErrorID).Inc()
	return nil
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}
