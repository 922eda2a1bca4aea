// Package wasm runs calls against WebAssembly modules on wazero.
//
// Only numeric exports are callable. Arguments are encoded by the export's
// parameter types:
//
//	i32  Int in the int32 range, or Bool
//	i64  Int
//	f32  Float or Int
//	f64  Float or Int
//
// Results decode to Int or Float, with i32 read as signed; an export with no results returns Null
// and one with several returns a Tuple. externref results are held in the
// backend's handle table and cross as HostRef.
//
// Modules registered with WithModule are instantiated once under their name
// and imported by it. Inline code is a binary module compiled for one call.
package wasm
