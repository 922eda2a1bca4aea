package runtime

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/synapse/engine"
)

// DefaultQueueSize is the request queue capacity used when WithQueueSize is
// not given.
const DefaultQueueSize = 1024

// Observer receives every state a call enters. It is called from several
// goroutines and must not block.
type Observer func(callID string, s engine.State)

// Option configures a Runtime.
type Option func(*Runtime)

// WithQueueSize sets the request queue capacity. Submit blocks while the
// queue is full.
func WithQueueSize(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithObserver registers a call state observer.
func WithObserver(o Observer) Option {
	return func(r *Runtime) {
		r.observer = o
	}
}

// WithLogger sets the runtime logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Runtime) {
		r.meterProvider = mp
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runtime) {
		r.tracerProvider = tp
	}
}
