package clv

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/synapse/errors"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindBool
	KindFloat
	KindInt
	KindTuple
	KindArray
	KindObject
	KindHostRef
)

var kindNames = [...]string{
	KindNull:    "null",
	KindString:  "string",
	KindBool:    "bool",
	KindFloat:   "float",
	KindInt:     "int",
	KindTuple:   "tuple",
	KindArray:   "array",
	KindObject:  "object",
	KindHostRef: "host_ref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// StringKind distinguishes ordinary text from text the embedded side must
// treat as pre-escaped markup.
type StringKind uint8

const (
	Normal StringKind = iota
	Safe
)

func (k StringKind) String() string {
	if k == Safe {
		return "safe"
	}
	return "normal"
}

// Ref identifies a native value parked in a backend's handle table.
type Ref struct {
	Owner  string
	Tag    string
	Handle uint32
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d(%s)", r.Owner, r.Handle, r.Tag)
}

// Value is an immutable cross-language value. The zero Value is Null.
type Value struct {
	obj   *Object
	s     string
	ref   Ref
	items []Value
	f     float64
	i     int64
	kind  Kind
	sk    StringKind
	b     bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a normal string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// SafeString returns a string value marked as safe.
func SafeString(s string) Value { return Value{kind: KindString, s: s, sk: Safe} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Tuple returns a fixed-arity sequence. items is copied.
func Tuple(items ...Value) Value {
	return Value{kind: KindTuple, items: copyItems(items)}
}

// Array returns a sequence. items is copied.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: copyItems(items)}
}

// ObjectOf returns an object value holding a copy of o. A nil o yields an
// empty object.
func ObjectOf(o *Object) Value {
	if o == nil {
		return Value{kind: KindObject, obj: NewObject()}
	}
	return Value{kind: KindObject, obj: o.Clone()}
}

// HostRef returns an opaque reference value.
func HostRef(r Ref) Value { return Value{kind: KindHostRef, ref: r} }

func copyItems(items []Value) []Value {
	if len(items) == 0 {
		return []Value{}
	}
	out := make([]Value, len(items))
	copy(out, items)
	return out
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// StringKind returns the string flavor. It is Normal for non-strings.
func (v Value) StringKind() StringKind { return v.sk }

// Len returns the number of items of a tuple or array, or the number of
// keys of an object. Other kinds report 0.
func (v Value) Len() int {
	switch v.kind {
	case KindTuple, KindArray:
		return len(v.items)
	case KindObject:
		return v.obj.Len()
	}
	return 0
}

// Index returns the i-th item of a tuple or array.
func (v Value) Index(i int) (Value, bool) {
	if (v.kind != KindTuple && v.kind != KindArray) || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Field returns the value under key of an object.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.obj.Get(key)
}

func mismatch(want Kind, v Value) error {
	return errors.New(errors.PhaseConvert, errors.KindConversion).
		GoType(want.String()).
		NativeType(v.kind.String()).
		Detail("type mismatch").
		User().
		Build()
}

// AsString returns the text of a string value of either flavor.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", mismatch(KindString, v)
	}
	return v.s, nil
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, mismatch(KindBool, v)
	}
	return v.b, nil
}

// AsFloat returns the float held by v. Int values are widened.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	}
	return 0, mismatch(KindFloat, v)
}

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, mismatch(KindInt, v)
	}
	return v.i, nil
}

// AsTuple returns a copy of the tuple items.
func (v Value) AsTuple() ([]Value, error) {
	if v.kind != KindTuple {
		return nil, mismatch(KindTuple, v)
	}
	return copyItems(v.items), nil
}

// AsArray returns a copy of the array items.
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, mismatch(KindArray, v)
	}
	return copyItems(v.items), nil
}

// AsObject returns a copy of the object.
func (v Value) AsObject() (*Object, error) {
	if v.kind != KindObject {
		return nil, mismatch(KindObject, v)
	}
	return v.obj.Clone(), nil
}

// AsHostRef returns the reference held by v.
func (v Value) AsHostRef() (Ref, error) {
	if v.kind != KindHostRef {
		return Ref{}, mismatch(KindHostRef, v)
	}
	return v.ref, nil
}

// Equal reports deep equality. NaN floats are equal to each other.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.s == b.s && a.sk == b.sk
	case KindBool:
		return a.b == b.b
	case KindFloat:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case KindInt:
		return a.i == b.i
	case KindTuple, KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for k, av := range a.obj.m {
			bv, ok := b.obj.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindHostRef:
		return a.ref == b.ref
	}
	return false
}

// String renders v for debugging.
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindString:
		if v.sk == Safe {
			b.WriteString("safe")
		}
		b.WriteString(strconv.Quote(v.s))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		b.WriteString(s)
		if !strings.ContainsAny(s, ".eEnN") {
			b.WriteString(".0")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindTuple, KindArray:
		open, end := "[", "]"
		if v.kind == KindTuple {
			open, end = "(", ")"
		}
		b.WriteString(open)
		for i, item := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			item.render(b)
		}
		b.WriteString(end)
	case KindObject:
		b.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			v.obj.m[k].render(b)
		}
		b.WriteByte('}')
	case KindHostRef:
		b.WriteString("ref:")
		b.WriteString(v.ref.String())
	}
}

// Interface converts v to plain Go values: nil, string, bool, float64,
// int64, []any, map[string]any or Ref.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindTuple, KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		for k, item := range v.obj.m {
			out[k] = item.Interface()
		}
		return out
	case KindHostRef:
		return v.ref
	}
	return nil
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
