package synapse

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/runtime"
	"github.com/wippyai/synapse/workflow"
)

// Option configures Open.
type Option func(*settings)

type settings struct {
	logger  *zap.Logger
	runtime []runtime.Option
}

// WithLogger sets the logger of the runtime and the workflow manager.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithRuntimeOptions passes options to the dispatcher.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(s *settings) {
		s.runtime = append(s.runtime, opts...)
	}
}

// Bridge is an initialized dispatcher with a workflow manager on top.
type Bridge struct {
	Runtime   *runtime.Runtime
	Workflows *workflow.Manager
}

// Open starts backend behind a dispatcher. The returned error is the
// dispatcher's initialization error.
func Open(ctx context.Context, backend engine.Backend, opts ...Option) (*Bridge, error) {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}

	rtOpts := append([]runtime.Option{runtime.WithLogger(s.logger)}, s.runtime...)
	rt := runtime.New(backend, rtOpts...)
	if err := rt.Init(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return &Bridge{
		Runtime:   rt,
		Workflows: workflow.NewManager(rt, workflow.WithLogger(s.logger)),
	}, nil
}

// Close stops the workflows and shuts the dispatcher down.
func (b *Bridge) Close(ctx context.Context) error {
	return b.Workflows.Close(ctx)
}
