// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (where in a call the error occurred), Kind
// (error category) and Class (caller mistake or bridge malfunction). The
// Error type carries a field path, Go/native type names, the embedded
// runtime's trace text and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindConversion).
//		Path("args", "0", "name").
//		GoType("clv.Value").
//		NativeType("function").
//		Detail("cannot convert function to string").
//		User().
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound("module", "workflows/ingest")
//	err := errors.DuplicateID("id1")
//
// Kinds are matched with errors.Is against the package sentinels:
//
//	if errors.Is(err, bridgeerrors.ErrLookup) { ... }
//
// Stack capture is off by default. EnableStacks(true) records a stack at
// construction time, printed by fmt with %+v.
package errors
