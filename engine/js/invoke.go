package js

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"

	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
)

type sliceResult struct {
	err error
	inv engine.Invocation
}

// Invoke runs the synchronous part of call on the event loop and waits for
// it. A promise that is still pending afterwards is returned as a pending
// invocation.
func (b *Backend) Invoke(ctx context.Context, call *engine.Call) (engine.Invocation, error) {
	b.mu.Lock()
	started, closed := b.started, b.closed
	b.mu.Unlock()
	if closed {
		return engine.Invocation{}, errors.Closed("js backend")
	}
	if !started {
		return engine.Invocation{}, errors.NotInitialized("js backend")
	}
	if err := call.Callable.Validate(); err != nil {
		return engine.Invocation{}, err
	}

	done := make(chan sliceResult, 1)
	if !b.loop.RunOnLoop(func(vm *goja.Runtime) {
		var res sliceResult
		defer func() {
			if r := recover(); r != nil {
				res = sliceResult{err: recovered(r)}
				b.logger.Error("recovered panic in call",
					zap.String("call", call.Callable.ID),
					zap.Any("panic", r))
			}
			done <- res
		}()
		res.inv, res.err = b.run(vm, call)
	}) {
		return engine.Invocation{}, errors.Closed("js backend")
	}

	select {
	case res := <-done:
		return res.inv, res.err
	case <-b.stopped:
		return engine.Invocation{}, errors.Closed("js backend")
	}
}

// run executes on the loop goroutine.
func (b *Backend) run(vm *goja.Runtime, call *engine.Call) (engine.Invocation, error) {
	call.Enter(engine.StateConverting)

	fn, err := b.resolve(vm, call.Callable)
	if err != nil {
		return engine.Invocation{}, err
	}

	args := make([]goja.Value, 0, len(call.Args)+1)
	for i, a := range call.Args {
		v, err := b.conv.toNative(a)
		if err != nil {
			return engine.Invocation{}, errors.WithPath(err, "args", strconv.Itoa(i))
		}
		args = append(args, v)
	}
	if call.Config != nil {
		cfg, err := b.configObject(vm, call.Config)
		if err != nil {
			return engine.Invocation{}, errors.WithPath(err, "config")
		}
		args = append(args, cfg)
	}

	call.Enter(engine.StateInvoking)
	ret, err := fn(goja.Undefined(), args...)
	if err != nil {
		return engine.Invocation{}, exceptionError(errors.PhaseInvoke, err)
	}

	if obj, ok := ret.(*goja.Object); ok {
		if p, ok := obj.Export().(*goja.Promise); ok {
			return b.settle(vm, call, obj, p)
		}
	}

	out, err := b.conv.fromNative(ret)
	if err != nil {
		return engine.Invocation{}, err
	}
	return engine.Ready(out), nil
}

// settle adapts a promise into an invocation. Settled promises resolve
// immediately; pending ones deliver a single Outcome when they settle.
func (b *Backend) settle(vm *goja.Runtime, call *engine.Call, obj *goja.Object, p *goja.Promise) (engine.Invocation, error) {
	switch p.State() {
	case goja.PromiseStateFulfilled:
		out, err := b.conv.fromNative(p.Result())
		if err != nil {
			return engine.Invocation{}, err
		}
		return engine.Ready(out), nil
	case goja.PromiseStateRejected:
		return engine.Invocation{}, rejectionError(p.Result())
	}

	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		return engine.Invocation{}, errors.New(errors.PhaseAwait, errors.KindInvocation).
			Detail("promise has no then method").
			Build()
	}

	ch := make(chan engine.Outcome, 1)
	onFulfilled := func(fc goja.FunctionCall) goja.Value {
		out, err := b.conv.fromNative(fc.Argument(0))
		ch <- engine.Outcome{Value: out, Err: err}
		return goja.Undefined()
	}
	onRejected := func(fc goja.FunctionCall) goja.Value {
		ch <- engine.Outcome{Err: rejectionError(fc.Argument(0))}
		return goja.Undefined()
	}
	if _, err := then(obj, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
		return engine.Invocation{}, exceptionError(errors.PhaseAwait, err)
	}

	call.Enter(engine.StateAwaitingNative)
	return engine.Invocation{Pending: ch}, nil
}

// resolve finds the callable named by c.
func (b *Backend) resolve(vm *goja.Runtime, c engine.Callable) (goja.Callable, error) {
	var target goja.Value
	if c.Import != "" {
		exports, err := b.require(c.Import)
		if err != nil {
			return nil, err
		}
		if goja.IsUndefined(exports) || goja.IsNull(exports) {
			return nil, errors.NotFound("attribute", c.Import+"."+c.Attr)
		}
		target = exports.ToObject(vm).Get(c.Attr)
	} else {
		v, err := b.inline(vm, c)
		if err != nil {
			return nil, err
		}
		target = v
	}

	if target == nil || goja.IsUndefined(target) {
		return nil, errors.NotFound("attribute", c.Attr)
	}
	fn, ok := goja.AssertFunction(target)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindLookup).
			Path(c.Attr).
			NativeType(typeName(target)).
			Detail("attribute is not callable").
			User().
			Build()
	}
	return fn, nil
}

func (b *Backend) require(name string) (ret goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = exceptionError(errors.PhaseResolve, ex)
				return
			}
			panic(r)
		}
	}()

	ret, err = b.req.Require(name)
	if err == nil {
		return ret, nil
	}
	if stderrors.Is(err, require.InvalidModuleError) ||
		stderrors.Is(err, require.IllegalModuleNameError) ||
		stderrors.Is(err, require.ModuleFileDoesNotExistError) {
		return nil, errors.New(errors.PhaseResolve, errors.KindLookup).
			Cause(err).
			Detail("module %q not found", name).
			User().
			Build()
	}
	return nil, exceptionError(errors.PhaseResolve, err)
}

// inline compiles c.Code as a module named after the call id and returns
// the attribute it exports or declares.
func (b *Backend) inline(vm *goja.Runtime, c engine.Callable) (goja.Value, error) {
	name := "inline/" + c.ID + ".js"
	prg, err := goja.Compile(name, wrapInline(string(c.Code), c.Attr), false)
	if err != nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindInvocation).
			Cause(err).
			Detail("compile %s", name).
			User().
			Build()
	}
	wrapper, err := vm.RunProgram(prg)
	if err != nil {
		return nil, exceptionError(errors.PhaseResolve, err)
	}
	fn, _ := goja.AssertFunction(wrapper)

	module := vm.NewObject()
	exports := vm.NewObject()
	_ = module.Set("exports", exports)
	ret, err := fn(goja.Undefined(), exports, vm.Get("require"), module)
	if err != nil {
		return nil, exceptionError(errors.PhaseResolve, err)
	}
	return ret, nil
}

const modulePrefix = "(function(exports, require, module) {"

// wrapModule turns CommonJS source into a function expression.
func wrapModule(src string) string {
	return modulePrefix + src + "\n})"
}

// wrapInline turns inline source into a function expression that returns
// module.exports[attr], falling back to a top-level declaration named attr.
func wrapInline(src, attr string) string {
	key, _ := json.Marshal(attr)
	lookup := fmt.Sprintf("module.exports[%s]", key)
	if engine.IsIdentifier(attr) {
		lookup = fmt.Sprintf("(%s !== undefined ? %s : (typeof %s !== \"undefined\" ? %s : undefined))",
			lookup, lookup, attr, attr)
	}
	return modulePrefix + src + "\n;return " + lookup + ";\n})"
}

// sourceModule runs a compiled module wrapper as a native module loader.
func sourceModule(prg *goja.Program) require.ModuleLoader {
	return func(vm *goja.Runtime, module *goja.Object) {
		wrapper, err := vm.RunProgram(prg)
		if err != nil {
			panic(err)
		}
		fn, _ := goja.AssertFunction(wrapper)
		if _, err := fn(goja.Undefined(), module.Get("exports"), vm.Get("require"), module); err != nil {
			panic(err)
		}
	}
}

// exceptionError converts an error returned by the VM into an invocation
// error carrying the message and stack text.
func exceptionError(phase errors.Phase, err error) error {
	var ex *goja.Exception
	if !stderrors.As(err, &ex) {
		return errors.Wrap(phase, errors.KindInvocation, err, "call failed")
	}
	if goErr := ex.Unwrap(); goErr != nil {
		if e, ok := errors.As(goErr); ok {
			return e
		}
	}
	return errors.Invocation(phase, valueMessage(ex.Value()), ex.String())
}

// rejectionError converts a promise rejection reason.
func rejectionError(reason goja.Value) error {
	trace := ""
	if obj, ok := reason.(*goja.Object); ok {
		if st := obj.Get("stack"); st != nil && !goja.IsUndefined(st) {
			trace = st.String()
		}
		if v := obj.Get("value"); v != nil {
			if goErr, ok := v.Export().(error); ok {
				if e, ok := errors.As(goErr); ok {
					return e
				}
			}
		}
	}
	return errors.Invocation(errors.PhaseAwait, valueMessage(reason), trace)
}

func valueMessage(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}

func typeName(v goja.Value) string {
	if o, ok := v.(*goja.Object); ok {
		return o.ClassName()
	}
	if goja.IsNull(v) {
		return "null"
	}
	if t := v.ExportType(); t != nil {
		return t.String()
	}
	return "unknown"
}

func recovered(r any) error {
	if ex, ok := r.(*goja.Exception); ok {
		return exceptionError(errors.PhaseInvoke, ex)
	}
	return errors.Panic(errors.PhaseInvoke, r)
}
