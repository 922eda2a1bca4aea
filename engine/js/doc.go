// Package js runs calls in a goja VM driven by a goja_nodejs event loop.
//
// The loop goroutine owns the VM. Invoke schedules the synchronous slice of
// a call on the loop and waits for it; a promise still pending afterwards is
// returned as a pending invocation that resolves when the promise settles.
//
// Callables are either imports or inline source:
//
//	engine.Callable{Import: "ingest", Attr: "run"}
//	engine.Callable{ID: "id1", Code: []byte(src), Attr: "add_numbers"}
//
// Imports are resolved by require against modules registered with
// WithNativeModule and WithModuleSource, the built-in "synapse" module and
// files in WithGlobalFolders. Inline source is compiled per call as a
// CommonJS module named inline/<id>.js; the attribute is read from
// module.exports and then from the source's top-level declarations.
//
// # Value Mapping
//
//	Null       null
//	String     string
//	SafeString object with a value property whose toString returns it
//	Bool       boolean
//	Int        number (integral numbers convert back to Int)
//	Float      number, or a boxed number when integral
//	Tuple      frozen array
//	Array      array
//	Object     plain object
//	HostRef    the parked value itself
//
// The VM stores integral numbers as integers, so an integral Float crosses
// as an object whose valueOf returns the number. Arithmetic and JSON work on
// it; strict equality and truthiness see an object.
//
// Reading a value back fails with a conversion error once it holds more
// than 2^20 array elements and object keys in total.
//
// Functions, promises, symbols, class instances and bigints outside the
// int64 range are parked in the backend's handle table and cross as HostRef.
//
// # Configuration Object
//
// When a call carries a config.Config it is appended as the last argument.
// The workflow section exposes channel and event_handler, and every
// collector and engine exposes its channel:
//
//	cfg.workflow.channel.receive_in_embedded()
//	cfg.workflow.channel.send_in_host("Status", {timestamp: 1, payload: "ok"})
//	cfg.workflow.event_handler.handle_event("Graph", data)
package js
