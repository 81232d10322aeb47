package telemetry

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelRecorder records usage events as span events on the active span and as
// OpenTelemetry metrics on the global meter provider.
type OTelRecorder struct {
	duration metric.Float64Histogram
	events   metric.Int64Counter
}

// NewOTelRecorder uses the global meter provider.
func NewOTelRecorder() (*OTelRecorder, error) {
	return newOTelRecorder(otel.Meter("github.com/stefanpenner/ghclient"))
}

func newOTelRecorder(meter metric.Meter) (*OTelRecorder, error) {
	duration, err := meter.Float64Histogram(
		"ghclient.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of API requests"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating duration histogram")
	}
	events, err := meter.Int64Counter(
		"ghclient.usage.events",
		metric.WithDescription("Named usage events"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating usage counter")
	}
	return &OTelRecorder{duration: duration, events: events}, nil
}

func (r *OTelRecorder) RecordRequest(ctx context.Context, record RequestRecord) error {
	attrs := []attribute.KeyValue{
		attribute.String("ghclient.event", record.Event),
		attribute.String("ghclient.outcome", string(record.Outcome)),
	}
	if record.ErrorID != "" {
		attrs = append(attrs, attribute.String("ghclient.error_id", record.ErrorID))
	}

	trace.SpanFromContext(ctx).AddEvent(record.Event, trace.WithAttributes(
		append(attrs, attribute.Int64("ghclient.duration_ms", record.Duration.Milliseconds()))...,
	))
	r.duration.Record(ctx, record.Duration.Seconds(), metric.WithAttributes(attrs...))
	r.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}
