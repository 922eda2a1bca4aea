package wasm

import (
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
	"github.com/wippyai/synapse/resource"
)

// DefaultName is the backend name and HostRef owner used when WithName is
// not given.
const DefaultName = "wasm"

// Option configures a Backend.
type Option func(*Backend)

// WithName sets the backend name.
func WithName(name string) Option {
	return func(b *Backend) {
		b.name = name
	}
}

// WithLogger sets the backend logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// WithModule registers a module importable under name. Modules are
// compiled and instantiated when the backend starts.
func WithModule(name string, wasm []byte) Option {
	return func(b *Backend) {
		b.sources[name] = wasm
	}
}

// WithMemoryLimitPages caps memory per instance in 64KiB pages. 0 keeps the
// wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(b *Backend) {
		b.memoryLimitPages = pages
	}
}

// WithThreads enables the threads proposal.
func WithThreads() Option {
	return func(b *Backend) {
		b.threads = true
	}
}

// WithWASI instantiates wasi_snapshot_preview1 so modules built for WASI
// can be loaded.
func WithWASI() Option {
	return func(b *Backend) {
		b.wasi = true
	}
}

// Backend calls numeric exports of WebAssembly modules on wazero. Calls run
// on the caller's goroutine and complete synchronously.
type Backend struct {
	runtime          wazero.Runtime
	table            *resource.Table
	logger           *zap.Logger
	sources          map[string][]byte
	instances        map[string]api.Module
	name             string
	mu               sync.Mutex
	memoryLimitPages uint32
	threads          bool
	wasi             bool
	started          bool
	closed           bool
}

var _ engine.Backend = (*Backend)(nil)

// New creates a wasm backend. Call Start before Invoke.
func New(opts ...Option) *Backend {
	b := &Backend{
		name:      DefaultName,
		sources:   make(map[string][]byte),
		instances: make(map[string]api.Module),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = engine.Logger()
	}
	b.logger = b.logger.With(zap.String("backend", b.name))
	b.table = resource.NewTable(b.name)
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return b.name
}

// Start creates the wazero runtime and instantiates registered modules.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Closed("wasm backend")
	}
	if b.started {
		return nil
	}

	cfg := wazero.NewRuntimeConfig()
	if b.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(b.memoryLimitPages)
	}
	if b.threads {
		cfg = cfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	if b.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
			_ = r.Close(ctx)
			return errors.Initialization("instantiate WASI", err)
		}
	}

	for name, src := range b.sources {
		compiled, err := r.CompileModule(ctx, src)
		if err != nil {
			_ = r.Close(ctx)
			return errors.Initialization("compile module "+name, err)
		}
		mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
		if err != nil {
			_ = r.Close(ctx)
			return errors.Initialization("instantiate module "+name, err)
		}
		b.instances[name] = mod
	}

	b.runtime = r
	b.started = true
	b.logger.Info("wasm backend started", zap.Int("modules", len(b.instances)))
	return nil
}

// Invoke calls an exported function. Inline code is compiled and
// instantiated for the duration of the call. The configuration object is
// not passed; wasm exports only take numbers.
func (b *Backend) Invoke(ctx context.Context, call *engine.Call) (engine.Invocation, error) {
	b.mu.Lock()
	started, closed, r := b.started, b.closed, b.runtime
	b.mu.Unlock()
	if closed {
		return engine.Invocation{}, errors.Closed("wasm backend")
	}
	if !started {
		return engine.Invocation{}, errors.NotInitialized("wasm backend")
	}
	if err := call.Callable.Validate(); err != nil {
		return engine.Invocation{}, err
	}

	call.Enter(engine.StateConverting)

	mod, release, err := b.module(ctx, r, call.Callable)
	if err != nil {
		return engine.Invocation{}, err
	}
	defer release()

	fn := mod.ExportedFunction(call.Callable.Attr)
	if fn == nil {
		return engine.Invocation{}, errors.NotFound("export", call.Callable.Attr)
	}
	def := fn.Definition()

	params, err := encodeParams(def.ParamTypes(), call.Args)
	if err != nil {
		return engine.Invocation{}, err
	}

	call.Enter(engine.StateInvoking)
	results, err := fn.Call(ctx, params...)
	if err != nil {
		msg, trace, _ := strings.Cut(err.Error(), "\n")
		return engine.Invocation{}, errors.Invocation(errors.PhaseInvoke, msg, trace)
	}

	out, err := b.decodeResults(def.ResultTypes(), results)
	if err != nil {
		return engine.Invocation{}, err
	}
	return engine.Ready(out), nil
}

// module returns the instance a callable refers to and a func releasing
// per-call instances.
func (b *Backend) module(ctx context.Context, r wazero.Runtime, c engine.Callable) (api.Module, func(), error) {
	if c.Import != "" {
		b.mu.Lock()
		mod, ok := b.instances[c.Import]
		b.mu.Unlock()
		if !ok {
			return nil, nil, errors.NotFound("module", c.Import)
		}
		return mod, func() {}, nil
	}

	compiled, err := r.CompileModule(ctx, c.Code)
	if err != nil {
		return nil, nil, errors.New(errors.PhaseResolve, errors.KindInvocation).
			Cause(err).
			Detail("compile inline module %q", c.ID).
			User().
			Build()
	}
	// anonymous so concurrent inline modules never collide
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, nil, errors.New(errors.PhaseResolve, errors.KindInvocation).
			Cause(err).
			Detail("instantiate inline module %q", c.ID).
			User().
			Build()
	}
	return mod, func() {
		if err := mod.Close(ctx); err != nil {
			b.logger.Warn("close inline module", zap.String("call", c.ID), zap.Error(err))
		}
		_ = compiled.Close(ctx)
	}, nil
}

// Release drops a HostRef minted by this backend.
func (b *Backend) Release(ref clv.Ref) bool {
	if ref.Owner != b.name {
		return false
	}
	_, ok := b.table.Release(resource.Handle(ref.Handle))
	return ok
}

// Close closes every instance and the runtime.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	_ = b.table.Close()
	if b.runtime == nil {
		return nil
	}
	if err := b.runtime.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseDispatch, errors.KindClosed, err, "close wazero runtime")
	}
	b.logger.Info("wasm backend closed")
	return nil
}
