package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPrometheusRecorder(t *testing.T) {
	recorder, err := NewPrometheusRecorder(MetricsConfig{Namespace: "test"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, recorder.RecordRequest(ctx, RequestRecord{Event: "codespace.start", Method: "POST", Duration: 120 * time.Millisecond, Outcome: OutcomeSuccess}))
	require.NoError(t, recorder.RecordRequest(ctx, RequestRecord{Event: "codespace.start", Method: "POST", Duration: time.Second, Outcome: OutcomeSuccess}))
	require.NoError(t, recorder.RecordRequest(ctx, RequestRecord{Event: "codespace.start", Method: "POST", Outcome: OutcomeError, ErrorID: "HTTPFailure"}))

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.events.WithLabelValues("codespace.start", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.events.WithLabelValues("codespace.start", "error", "HTTPFailure")))
	assert.Equal(t, 2, testutil.CollectAndCount(recorder.duration))

	err = recorder.RecordRequest(ctx, RequestRecord{})
	assert.Error(t, err)
}

func TestPrometheusRecorderHandler(t *testing.T) {
	recorder, err := NewPrometheusRecorder(MetricsConfig{})
	require.NoError(t, err)
	require.NoError(t, recorder.RecordRequest(context.Background(), RequestRecord{Event: "graphql", Method: "POST", Outcome: OutcomeSuccess}))

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `ghclient_usage_events_total{error_id="",event="graphql",outcome="success"} 1`), string(body))
	assert.Contains(t, string(body), "ghclient_request_duration_seconds_bucket")
}

func TestOTelRecorder(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	recorder, err := newOTelRecorder(provider.Meter("test"))
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	ctx, span := tp.Tracer("test").Start(context.Background(), "Execute")

	require.NoError(t, recorder.RecordRequest(ctx, RequestRecord{Event: "codespace.get", Duration: 250 * time.Millisecond, Outcome: OutcomeError, ErrorID: "NOT_FOUND"}))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "codespace.get", spans[0].Events[0].Name)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
		}
	}
	assert.True(t, names["ghclient.request.duration"])
	assert.True(t, names["ghclient.usage.events"])
}

type failingRecorder struct{ err error }

func (f failingRecorder) RecordRequest(context.Context, RequestRecord) error { return f.err }

func TestMultiRecorderJoinsErrors(t *testing.T) {
	first := errors.New("first sink")
	second := errors.New("second sink")
	multi := MultiRecorder{failingRecorder{}, nil, failingRecorder{err: first}, failingRecorder{err: second}}

	err := multi.RecordRequest(context.Background(), RequestRecord{Event: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, first))
	assert.True(t, errors.Is(err, second))

	assert.NoError(t, MultiRecorder{failingRecorder{}}.RecordRequest(context.Background(), RequestRecord{Event: "x"}))
}
