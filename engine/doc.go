// Package engine defines the contract between the dispatcher and an
// embedded runtime.
//
// A Backend owns one embedded runtime. The dispatcher hands it one Call at a
// time; the backend resolves the Callable, converts the arguments, runs the
// code and returns an Invocation. Results that are ready immediately come
// back in Invocation.Value. Results the runtime still has to produce, such
// as a pending promise, come back as a channel that delivers exactly one
// Outcome:
//
//	inv, err := backend.Invoke(ctx, call)
//	if err != nil {
//	    return err // conversion, lookup or invocation error
//	}
//	if inv.Pending == nil {
//	    return inv.Value
//	}
//	out := <-inv.Pending
//	return out.Value, out.Err
//
// # Call States
//
// Each call moves through Queued, Converting, Invoking and optionally
// AwaitingNative, ending in Completed or Failed. Backends report Converting,
// Invoking and AwaitingNative through Call.Enter; the dispatcher reports the
// rest.
//
// # Implementations
//
//	engine/js    JavaScript on goja with the goja_nodejs event loop
//	engine/wasm  numeric exports of WebAssembly modules on wazero
//
// # Thread Safety
//
// Invoke is never called concurrently for one backend. Release may be called
// from any goroutine.
package engine
