// Package synapse bridges Go callers and an embedded runtime that runs one
// logical thread.
//
// Go code submits calls from any number of goroutines. A dispatcher owns the
// embedded runtime, runs the synchronous part of each call one at a time in
// submission order, and lets calls that await native work (JavaScript
// promises, timers) complete concurrently. Values cross the boundary as
// clv.Value, a closed tagged union; values with no cross-language form stay
// in the runtime and cross as HostRef handles.
//
// # Architecture Overview
//
//	synapse/             Bridge facade wiring a backend, dispatcher and manager
//	├── clv/             Cross-language values
//	├── engine/          Backend contract, call states and outcomes
//	│   ├── js/          goja VM on a goja_nodejs event loop
//	│   └── wasm/        numeric exports on wazero
//	├── runtime/         Dispatcher: ordered queue, single consumer, futures
//	├── workflow/        Workflow registry and concurrent start/stop
//	├── channel/         Message, token and event queues shared with embedded code
//	├── config/          Configuration object passed to every workflow call
//	├── resource/        Handle table behind HostRef
//	└── errors/          Structured error types
//
// # Quick Start
//
//	bridge, err := synapse.Open(ctx, js.New(js.WithModuleSource("ingest", src)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Close(ctx)
//
//	w, _ := workflow.NewBuilder("id1").
//	    Import("ingest", "run").
//	    Config(config.Default().Connect()).
//	    Build()
//	_ = bridge.Workflows.AddWorkflow(w)
//	report, err := bridge.Workflows.StartWorkflows(ctx)
//
// # Errors
//
// Every failure is an *errors.Error with a Phase, a Kind and a Class. Match
// kinds with errors.Is against the sentinels in the errors package:
//
//	if errors.Is(err, bridgeerrors.ErrLookup) { ... }
package synapse
