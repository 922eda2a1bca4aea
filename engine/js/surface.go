package js

import (
	"strconv"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/synapse/channel"
	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/config"
)

// builtinModule is the name under which the backend's own helpers are
// available to require.
const builtinModule = "synapse"

// builtin exports sleep(ms, value), a promise that resolves with value
// after ms milliseconds on the event loop.
func (b *Backend) builtin(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").ToObject(vm)
	_ = exports.Set("sleep", func(call goja.FunctionCall) goja.Value {
		ms := call.Argument(0).ToInteger()
		if ms < 0 {
			ms = 0
		}
		value := call.Argument(1)
		promise, resolve, _ := vm.NewPromise()
		b.loop.SetTimeout(func(*goja.Runtime) {
			_ = resolve(value)
		}, time.Duration(ms)*time.Millisecond)
		return vm.ToValue(promise)
	})
}

// configObject converts cfg and binds its handlers as JS objects.
func (b *Backend) configObject(vm *goja.Runtime, cfg *config.Config) (goja.Value, error) {
	v, err := b.conv.toNative(cfg.Value())
	if err != nil {
		return nil, err
	}
	obj := v.ToObject(vm)

	workflow := obj.Get("workflow").ToObject(vm)
	_ = workflow.Set("channel", b.channelObject(vm, cfg.Workflow.Channel))
	_ = workflow.Set("event_handler", b.eventHandlerObject(vm, cfg.Workflow.EventHandler))

	collectors := obj.Get("collectors").ToObject(vm)
	for i, c := range cfg.Collectors {
		item := collectors.Get(strconv.Itoa(i)).ToObject(vm)
		_ = item.Set("channel", b.channelObject(vm, c.Channel))
	}
	engines := obj.Get("engines").ToObject(vm)
	for i, e := range cfg.Engines {
		item := engines.Get(strconv.Itoa(i)).ToObject(vm)
		_ = item.Set("channel", b.channelObject(vm, e.Channel))
	}
	return obj, nil
}

// channelObject exposes the embedded side of h. Receives return null when
// nothing is queued or the channel is closed.
func (b *Backend) channelObject(vm *goja.Runtime, h *channel.Handler) goja.Value {
	if h == nil {
		return goja.Null()
	}
	obj := vm.NewObject()

	_ = obj.Set("receive_tokens", func(goja.FunctionCall) goja.Value {
		t, status := h.ReceiveTokens()
		if status != channel.Received {
			return goja.Null()
		}
		return b.mustNative(vm, t.Value())
	})
	_ = obj.Set("receive_in_embedded", func(goja.FunctionCall) goja.Value {
		m, status := h.ReceiveInEmbedded()
		if status != channel.Received {
			return goja.Null()
		}
		return b.mustNative(vm, m.Value())
	})
	_ = obj.Set("send_in_host", func(call goja.FunctionCall) goja.Value {
		mt, err := channel.ParseMessageType(call.Argument(0).String())
		if err != nil {
			panic(vm.NewTypeError("%s", err.Error()))
		}
		data, err := b.conv.fromNative(call.Argument(1))
		if err != nil {
			panic(vm.NewTypeError("%s", err.Error()))
		}
		state, err := channel.MessageStateFromValue(data)
		if err != nil {
			panic(vm.NewTypeError("%s", err.Error()))
		}
		if err := h.SendInHost(mt, state); err != nil {
			b.logger.Debug("send_in_host dropped", zap.Error(err))
			return vm.ToValue(false)
		}
		return vm.ToValue(true)
	})
	_ = obj.Set("is_closed", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(h.Closed())
	})
	return obj
}

// eventHandlerObject exposes handle_event(type, data).
func (b *Backend) eventHandlerObject(vm *goja.Runtime, h *channel.EventHandler) goja.Value {
	if h == nil {
		return goja.Null()
	}
	obj := vm.NewObject()
	_ = obj.Set("handle_event", func(call goja.FunctionCall) goja.Value {
		et, err := channel.ParseEventType(call.Argument(0).String())
		if err != nil {
			panic(vm.NewTypeError("%s", err.Error()))
		}
		data, err := b.conv.fromNative(call.Argument(1))
		if err != nil {
			panic(vm.NewTypeError("%s", err.Error()))
		}
		state, err := channel.EventStateFromValue(data)
		if err != nil {
			panic(vm.NewTypeError("%s", err.Error()))
		}
		if err := h.HandleEvent(et, state); err != nil {
			b.logger.Debug("handle_event dropped", zap.Error(err))
			return vm.ToValue(false)
		}
		return vm.ToValue(true)
	})
	return obj
}

func (b *Backend) mustNative(vm *goja.Runtime, v clv.Value) goja.Value {
	nv, err := b.conv.toNative(v)
	if err != nil {
		panic(vm.NewGoError(err))
	}
	return nv
}
