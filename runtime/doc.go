// Package runtime dispatches calls from Go to an embedded runtime.
//
// # Quick Start
//
//	backend := js.New(js.WithModuleSource("ingest", src))
//	rt := runtime.New(backend, runtime.WithLogger(logger))
//	if err := rt.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	future, err := rt.Submit(ctx, engine.Call{
//	    Callable: engine.Callable{Import: "ingest", Attr: "run"},
//	    Args:     []clv.Value{clv.String("doc.pdf")},
//	    Config:   cfg,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := future.Wait(ctx)
//
// # Ordering
//
// Requests enter a bounded queue and are taken by a single consumer in
// submission order. The consumer hands each request to the backend and does
// not take the next one until the synchronous part of the call is over, so
// at most one call is ever converting or invoking. Calls that return a
// pending result are completed by a bridge goroutine and may finish in any
// order.
//
// # Lifecycle
//
//	New -> Initializing -> Ready -> Closing -> Closed
//	               \-> Failed
//
// An Init failure is returned by every later Submit. Close fails queued
// requests, waits for awaiting calls until its context ends, then closes
// the backend.
//
// # Observability
//
// Every state transition is logged at debug level and passed to the
// Observer. Each call is traced as a span, and the dispatcher records a
// call counter, an awaiting gauge and a duration histogram through the
// OpenTelemetry global providers unless others are given.
package runtime
