package runtime

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
)

// Lifecycle is the state of a Runtime.
type Lifecycle int32

const (
	LifecycleNew Lifecycle = iota
	LifecycleInitializing
	LifecycleReady
	LifecycleFailed
	LifecycleClosing
	LifecycleClosed
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleNew:
		return "new"
	case LifecycleInitializing:
		return "initializing"
	case LifecycleReady:
		return "ready"
	case LifecycleFailed:
		return "failed"
	case LifecycleClosing:
		return "closing"
	case LifecycleClosed:
		return "closed"
	}
	return "unknown"
}

type request struct {
	ctx      context.Context
	call     *engine.Call
	future   *Future
	span     trace.Span
	enqueued time.Time
}

// Runtime dispatches calls to one backend. Requests are taken from a
// bounded queue in submission order by a single consumer, which runs the
// synchronous slice of each call before taking the next. Calls that end up
// awaiting a native result complete on their own goroutine.
type Runtime struct {
	backend        engine.Backend
	initErr        error
	logger         *zap.Logger
	observer       Observer
	metrics        *metrics
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	queue          chan *request
	quit           chan struct{}
	abandon        chan struct{}
	consumerDone   chan struct{}
	awaiting       sync.WaitGroup
	queueSize      int
	mu             sync.RWMutex
	quitOnce       sync.Once
	state          Lifecycle
}

// New creates a runtime for backend. Call Init before submitting calls.
func New(backend engine.Backend, opts ...Option) *Runtime {
	r := &Runtime{
		backend:      backend,
		queueSize:    DefaultQueueSize,
		quit:         make(chan struct{}),
		abandon:      make(chan struct{}),
		consumerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.With(zap.String("backend", backend.Name()))
	if r.meterProvider == nil {
		r.meterProvider = otel.GetMeterProvider()
	}
	if r.tracerProvider == nil {
		r.tracerProvider = otel.GetTracerProvider()
	}
	r.tracer = r.tracerProvider.Tracer(instrumentationName)

	m, err := newMetrics(r.meterProvider, backend.Name())
	if err != nil {
		r.logger.Warn("metrics disabled", zap.Error(err))
		m = noopMetrics(backend.Name())
	}
	r.metrics = m
	r.queue = make(chan *request, r.queueSize)
	return r
}

// State returns the lifecycle state.
func (r *Runtime) State() Lifecycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Init starts the backend and the consumer. A failure is stored and
// returned by Init and by every later Submit.
func (r *Runtime) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case LifecycleReady:
		return nil
	case LifecycleFailed:
		return r.initErr
	case LifecycleClosing, LifecycleClosed:
		return errors.Closed("runtime")
	}

	r.state = LifecycleInitializing
	if err := r.backend.Start(ctx); err != nil {
		r.initErr = errors.Initialization("start backend "+r.backend.Name(), err)
		r.state = LifecycleFailed
		if cerr := r.backend.Close(ctx); cerr != nil {
			r.logger.Warn("close backend after failed start", zap.Error(cerr))
		}
		r.logger.Error("runtime init failed", zap.Error(err))
		return r.initErr
	}

	go r.consume()
	r.state = LifecycleReady
	r.logger.Info("runtime ready", zap.Int("queue_size", r.queueSize))
	return nil
}

// Submit queues call and returns its future. It blocks while the queue is
// full. Calls without a callable ID get a generated one.
func (r *Runtime) Submit(ctx context.Context, call engine.Call) (*Future, error) {
	if call.Callable.ID == "" {
		call.Callable.ID = uuid.NewString()
	}
	if err := call.Callable.Validate(); err != nil {
		return nil, err
	}

	req := &request{
		ctx:      ctx,
		call:     &call,
		future:   newFuture(call.Callable.ID),
		enqueued: time.Now(),
	}
	call.Observe = func(s engine.State) { r.observe(req, s) }

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch r.state {
	case LifecycleReady:
	case LifecycleFailed:
		return nil, r.initErr
	case LifecycleClosing, LifecycleClosed:
		return nil, errors.Closed("runtime")
	default:
		return nil, errors.NotInitialized("runtime")
	}

	_, req.span = r.tracer.Start(ctx, "synapse.call", trace.WithAttributes(
		attribute.String("synapse.call.id", call.Callable.ID),
		attribute.String("synapse.call.attr", call.Callable.Attr),
		attribute.String("synapse.backend", r.backend.Name()),
	))

	r.observe(req, engine.StateQueued)
	select {
	case r.queue <- req:
		return req.future, nil
	case <-r.quit:
		err := errors.Closed("runtime")
		r.finish(req, clv.Value{}, err)
		return nil, err
	case <-ctx.Done():
		err := errors.New(errors.PhaseDispatch, errors.KindInvocation).
			Cause(ctx.Err()).
			Detail("submit %s", call.Callable.ID).
			User().
			Build()
		r.finish(req, clv.Value{}, err)
		return nil, err
	}
}

// Call submits call and waits for its result.
func (r *Runtime) Call(ctx context.Context, call engine.Call) (clv.Value, error) {
	f, err := r.Submit(ctx, call)
	if err != nil {
		return clv.Value{}, err
	}
	return f.Wait(ctx)
}

// Release drops a HostRef held by the backend.
func (r *Runtime) Release(ref clv.Ref) bool {
	return r.backend.Release(ref)
}

// Close stops accepting calls and fails the ones still queued. Calls that
// are awaiting a native result get until ctx ends to complete; the rest
// fail with a closed error. The backend is closed last.
func (r *Runtime) Close(ctx context.Context) error {
	// release submitters blocked on a full queue before taking the lock
	r.quitOnce.Do(func() { close(r.quit) })

	r.mu.Lock()
	prev := r.state
	if prev == LifecycleClosing || prev == LifecycleClosed {
		r.mu.Unlock()
		return nil
	}
	r.state = LifecycleClosing
	if prev == LifecycleReady {
		close(r.queue)
	}
	r.mu.Unlock()

	var errs []error
	if prev == LifecycleReady {
		select {
		case <-r.consumerDone:
			errs = append(errs, r.drainAwaiting(ctx)...)
		case <-ctx.Done():
			// the consumer may still start bridges; they see abandon closed
			close(r.abandon)
			errs = append(errs, errors.Wrap(errors.PhaseDispatch, errors.KindClosed, ctx.Err(), "wait for consumer"))
		}
	}

	if prev != LifecycleFailed {
		if err := r.backend.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	r.state = LifecycleClosed
	r.mu.Unlock()
	r.logger.Info("runtime closed")
	return stderrors.Join(errs...)
}

// drainAwaiting waits for awaiting calls until ctx ends, then abandons the
// rest. Only called once the consumer has exited.
func (r *Runtime) drainAwaiting(ctx context.Context) []error {
	awaited := make(chan struct{})
	go func() {
		r.awaiting.Wait()
		close(awaited)
	}()
	select {
	case <-awaited:
		return nil
	case <-ctx.Done():
		close(r.abandon)
		<-awaited
		return []error{errors.Wrap(errors.PhaseDispatch, errors.KindClosed, ctx.Err(), "abandon awaiting calls")}
	}
}

func (r *Runtime) consume() {
	defer close(r.consumerDone)
	for req := range r.queue {
		select {
		case <-r.quit:
			r.finish(req, clv.Value{}, errors.Closed("runtime"))
			continue
		default:
		}
		if err := req.ctx.Err(); err != nil {
			r.finish(req, clv.Value{}, errors.New(errors.PhaseDispatch, errors.KindInvocation).
				Cause(err).
				Detail("call %s canceled before it started", req.call.Callable.ID).
				User().
				Build())
			continue
		}
		r.slice(req)
	}
}

// slice runs the synchronous part of one call.
func (r *Runtime) slice(req *request) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recovered panic in dispatcher",
				zap.String("call", req.call.Callable.ID),
				zap.Any("panic", p))
			r.finish(req, clv.Value{}, errors.Panic(errors.PhaseInvoke, p))
		}
	}()

	inv, err := r.backend.Invoke(req.ctx, req.call)
	if err != nil {
		r.finish(req, clv.Value{}, err)
		return
	}
	if inv.Pending == nil {
		r.finish(req, inv.Value, nil)
		return
	}

	r.awaiting.Add(1)
	r.metrics.await(req.ctx, 1)
	go r.bridge(req, inv.Pending)
}

// bridge completes a call from its pending outcome.
func (r *Runtime) bridge(req *request, pending <-chan engine.Outcome) {
	defer r.awaiting.Done()
	defer r.metrics.await(context.Background(), -1)

	select {
	case out := <-pending:
		r.finish(req, out.Value, out.Err)
	case <-r.abandon:
		r.finish(req, clv.Value{}, errors.Closed("runtime"))
	}
}

func (r *Runtime) finish(req *request, v clv.Value, err error) {
	req.future.complete(v, err, func() {
		state := engine.StateCompleted
		outcome := "completed"
		if err != nil {
			state = engine.StateFailed
			outcome = "failed"
			req.span.RecordError(err)
			req.span.SetStatus(codes.Error, err.Error())
			r.logger.Debug("call failed",
				zap.String("call", req.call.Callable.ID),
				zap.Error(err))
		}
		r.observe(req, state)
		r.metrics.completed(context.Background(), outcome, time.Since(req.enqueued))
		req.span.End()
	})
}

func (r *Runtime) observe(req *request, s engine.State) {
	r.logger.Debug("call state",
		zap.String("call", req.call.Callable.ID),
		zap.Stringer("state", s))
	if r.observer != nil {
		r.observer(req.call.Callable.ID, s)
	}
}
