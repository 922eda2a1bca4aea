// Package resource provides the handle table behind HostRef values.
//
// Values produced by the embedded runtime that have no cross-language
// representation (functions, class instances, pending promises, symbols)
// are parked in a Table and referred to by an integer Handle. The handle
// travels to the host inside a clv.HostRef; when the host passes that ref
// back, the backend resolves it to the very same native value.
//
//	table := resource.NewTable("js")
//
//	h, err := table.Put("function", fn)
//	value, tag, ok := table.Get(h)
//	value, ok = table.Release(h)
//
// # Ownership
//
// Every table has an owner name. A ref minted by one backend carries that
// owner and is rejected by any other backend.
//
// # Stale Handles
//
// Slots are reused after Release, but each reuse bumps the slot generation
// encoded in the handle. A handle that was released never resolves again.
//
// # Observers
//
// Register observers to track table lifecycle events:
//
//	cancel := table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s %d (%s)", e.Type, e.Handle, e.Tag)
//	}))
//	defer cancel()
//
// # Memory Management
//
// Entries are not garbage collected. The host releases a ref explicitly,
// and Close releases everything still held, calling Drop on values that
// implement Dropper.
package resource
