// Package clv defines the cross-language value exchanged between the host
// and embedded runtimes.
//
// A Value is a closed tagged union: null, string (normal or safe), bool,
// float, int, tuple, array, object and host ref. Values are immutable once
// constructed; constructors copy their inputs and downcasts return copies.
//
//	obj := clv.NewObject()
//	obj.Insert("name", clv.String("ingest"))
//	obj.Insert("limit", clv.Int(10))
//	args := []clv.Value{clv.ObjectOf(obj), clv.Tuple(clv.Int(1), clv.Bool(true))}
//
// Downcasts never panic. Asking for the wrong variant returns a conversion
// error:
//
//	n, err := v.AsInt()
//	if errors.Is(err, bridgeerrors.ErrConversion) { ... }
//
// Host refs are opaque. They point at a native value held in the handle
// table of the backend that produced them, and are only meaningful when
// passed back to that backend.
package clv
