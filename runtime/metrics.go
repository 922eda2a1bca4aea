package runtime

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/wippyai/synapse/runtime"

type metrics struct {
	calls    metric.Int64Counter
	awaiting metric.Int64UpDownCounter
	duration metric.Float64Histogram
	backend  attribute.KeyValue
}

func newMetrics(mp metric.MeterProvider, backend string) (*metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &metrics{backend: attribute.String("backend", backend)}

	var err error
	if m.calls, err = meter.Int64Counter("synapse.calls",
		metric.WithDescription("Calls completed by the dispatcher"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.awaiting, err = meter.Int64UpDownCounter("synapse.calls.awaiting",
		metric.WithDescription("Calls waiting on a native awaitable"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("synapse.call.duration",
		metric.WithDescription("Time from submission to completion"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func noopMetrics(backend string) *metrics {
	m, _ := newMetrics(noop.NewMeterProvider(), backend)
	return m
}

func (m *metrics) completed(ctx context.Context, outcome string, took time.Duration) {
	attrs := metric.WithAttributes(m.backend, attribute.String("outcome", outcome))
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, took.Seconds(), attrs)
}

func (m *metrics) await(ctx context.Context, delta int64) {
	m.awaiting.Add(ctx, delta, metric.WithAttributes(m.backend))
}
