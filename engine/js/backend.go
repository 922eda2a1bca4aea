package js

import (
	"context"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
	"github.com/wippyai/synapse/resource"
)

// DefaultName is the backend name and HostRef owner used when WithName is
// not given.
const DefaultName = "js"

// Option configures a Backend.
type Option func(*Backend)

// WithName sets the backend name. Refs minted by the backend carry it as
// their owner.
func WithName(name string) Option {
	return func(b *Backend) {
		b.name = name
	}
}

// WithLogger sets the logger for the backend and the JS console.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// WithNativeModule registers a Go-implemented module available to require.
func WithNativeModule(name string, loader require.ModuleLoader) Option {
	return func(b *Backend) {
		b.native[name] = loader
	}
}

// WithModuleSource registers CommonJS source under name. The source is
// compiled when the backend starts.
func WithModuleSource(name, src string) Option {
	return func(b *Backend) {
		b.sources[name] = src
	}
}

// WithGlobalFolders adds folders searched by require for file modules.
func WithGlobalFolders(folders ...string) Option {
	return func(b *Backend) {
		b.folders = append(b.folders, folders...)
	}
}

// WithSourceLoader replaces the loader used for file modules.
func WithSourceLoader(l require.SourceLoader) Option {
	return func(b *Backend) {
		b.loader = l
	}
}

// Backend runs calls in a goja VM owned by a goja_nodejs event loop. The
// loop goroutine is the only goroutine that touches the VM; timers and
// promise jobs are scheduled on it.
type Backend struct {
	loop    *eventloop.EventLoop
	req     *require.RequireModule
	conv    *converter
	table   *resource.Table
	logger  *zap.Logger
	loader  require.SourceLoader
	native  map[string]require.ModuleLoader
	sources map[string]string
	stopped chan struct{}
	name    string
	folders []string
	mu      sync.Mutex
	started bool
	closed  bool
}

var _ engine.Backend = (*Backend)(nil)

// New creates a JavaScript backend. Call Start before Invoke.
func New(opts ...Option) *Backend {
	b := &Backend{
		name:    DefaultName,
		native:  make(map[string]require.ModuleLoader),
		sources: make(map[string]string),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = engine.Logger()
	}
	b.logger = b.logger.With(zap.String("backend", b.name))
	b.table = resource.NewTable(b.name)
	b.table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		b.logger.Debug("host ref",
			zap.Stringer("event", e.Type),
			zap.Uint32("handle", uint32(e.Handle)),
			zap.String("tag", e.Tag))
	}))
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return b.name
}

// Start compiles registered module sources, starts the event loop and
// prepares the VM.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Closed("js backend")
	}
	if b.started {
		return nil
	}

	var regOpts []require.Option
	if b.loader != nil {
		regOpts = append(regOpts, require.WithLoader(b.loader))
	}
	if len(b.folders) > 0 {
		regOpts = append(regOpts, require.WithGlobalFolders(b.folders...))
	}
	reg := require.NewRegistry(regOpts...)

	for name, loader := range b.native {
		reg.RegisterNativeModule(name, loader)
	}
	for name, src := range b.sources {
		prg, err := goja.Compile(name+".js", wrapModule(src), false)
		if err != nil {
			return errors.Initialization("compile module "+name, err)
		}
		reg.RegisterNativeModule(name, sourceModule(prg))
	}
	reg.RegisterNativeModule("console", console.RequireWithPrinter(&printer{logger: b.logger}))
	reg.RegisterNativeModule(builtinModule, b.builtin)

	b.loop = eventloop.NewEventLoop(eventloop.EnableConsole(false), eventloop.WithRegistry(reg))
	b.loop.Start()

	initErr := make(chan error, 1)
	if !b.loop.RunOnLoop(func(vm *goja.Runtime) {
		b.req = reg.Enable(vm)
		console.Enable(vm)
		conv, err := newConverter(vm, b.table)
		b.conv = conv
		initErr <- err
	}) {
		return errors.Initialization("event loop rejected init job", nil)
	}

	select {
	case err := <-initErr:
		if err != nil {
			b.loop.Stop()
			return errors.Initialization("prepare VM", err)
		}
	case <-ctx.Done():
		b.loop.StopNoWait()
		return errors.Initialization("start js backend", ctx.Err())
	}

	b.started = true
	b.logger.Info("js backend started", zap.Int("modules", len(b.sources)+len(b.native)))
	return nil
}

// Release drops a host ref minted by this backend.
func (b *Backend) Release(ref clv.Ref) bool {
	if ref.Owner != b.name {
		return false
	}
	_, ok := b.table.Release(resource.Handle(ref.Handle))
	return ok
}

// HostRefs returns the number of live host refs.
func (b *Backend) HostRefs() int {
	return b.table.Len()
}

// Close stops the event loop and releases every host ref. Pending promises
// never settle afterwards.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	loop := b.loop
	b.mu.Unlock()

	close(b.stopped)

	var err error
	if loop != nil {
		done := make(chan struct{})
		go func() {
			loop.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			loop.Terminate()
			err = errors.Wrap(errors.PhaseDispatch, errors.KindClosed, ctx.Err(), "stop event loop")
		}
	}
	_ = b.table.Close()
	b.logger.Info("js backend closed")
	return err
}

type printer struct {
	logger *zap.Logger
}

func (p *printer) Log(s string)   { p.logger.Info(s, zap.String("source", "console")) }
func (p *printer) Warn(s string)  { p.logger.Warn(s, zap.String("source", "console")) }
func (p *printer) Error(s string) { p.logger.Error(s, zap.String("source", "console")) }
