package clv

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/synapse/errors"
)

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	assert.Equal(t, KindNull, v.Kind())
	assert.True(t, v.IsNull())
	assert.True(t, Equal(v, Null()))
}

func TestObjectInsertOverwrites(t *testing.T) {
	obj := NewObject()

	_, replaced := obj.Insert("k", Int(1))
	assert.False(t, replaced)

	prev, replaced := obj.Insert("k", Int(2))
	assert.True(t, replaced)
	assert.True(t, Equal(prev, Int(1)))

	got, ok := obj.Get("k")
	require.True(t, ok)
	assert.True(t, Equal(got, Int(2)))
	assert.Equal(t, 1, obj.Len())
}

func TestObjectZeroValue(t *testing.T) {
	var obj Object
	assert.Equal(t, 0, obj.Len())
	assert.False(t, obj.Delete("k"))

	_, replaced := obj.Insert("k", String("v"))
	assert.False(t, replaced)
	got, ok := obj.Get("k")
	require.True(t, ok)
	assert.True(t, Equal(got, String("v")))
	assert.True(t, Equal(ObjectOf(&obj), MustFromGo(map[string]any{"k": "v"})))
}

func TestObjectKeysSorted(t *testing.T) {
	obj := NewObject()
	obj.Insert("b", Null())
	obj.Insert("c", Null())
	obj.Insert("a", Null())
	assert.Equal(t, []string{"a", "b", "c"}, obj.Keys())

	var seen []string
	obj.Range(func(k string, _ Value) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestDowncastMismatch(t *testing.T) {
	_, err := Bool(true).AsString()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConversion)

	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassUser, e.Class)
	assert.Contains(t, e.Error(), "type mismatch")
	assert.Equal(t, "string", e.GoType)
	assert.Equal(t, "bool", e.NativeType)

	_, err = String("x").AsInt()
	assert.ErrorIs(t, err, errors.ErrConversion)
	_, err = Array().AsTuple()
	assert.ErrorIs(t, err, errors.ErrConversion)
	_, err = Null().AsObject()
	assert.ErrorIs(t, err, errors.ErrConversion)
	_, err = Int(1).AsHostRef()
	assert.ErrorIs(t, err, errors.ErrConversion)
}

func TestDowncastSuccess(t *testing.T) {
	s, err := SafeString("<b>").AsString()
	require.NoError(t, err)
	assert.Equal(t, "<b>", s)

	f, err := Int(3).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	ref := Ref{Owner: "js", Handle: 4, Tag: "function"}
	got, err := HostRef(ref).AsHostRef()
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestImmutability(t *testing.T) {
	items := []Value{Int(1), Int(2)}
	arr := Array(items...)
	items[0] = Int(99)
	first, _ := arr.Index(0)
	assert.True(t, Equal(first, Int(1)), "constructor must copy items")

	out, err := arr.AsArray()
	require.NoError(t, err)
	out[1] = Int(42)
	second, _ := arr.Index(1)
	assert.True(t, Equal(second, Int(2)), "downcast must return a copy")

	obj := NewObject()
	obj.Insert("a", Int(1))
	v := ObjectOf(obj)
	obj.Insert("a", Int(2))
	got, _ := v.Field("a")
	assert.True(t, Equal(got, Int(1)), "ObjectOf must copy")

	cp, _ := v.AsObject()
	cp.Insert("b", Int(3))
	assert.Equal(t, 1, v.Len())
}

func TestEqual(t *testing.T) {
	assert.False(t, Equal(String("a"), SafeString("a")))
	assert.False(t, Equal(Tuple(Int(1)), Array(Int(1))))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(Float(math.NaN()), Float(math.NaN())))
	assert.True(t, Equal(
		MustFromGo(map[string]any{"a": []any{1, "x"}}),
		MustFromGo(map[string]any{"a": []any{int64(1), "x"}}),
	))
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "w",
		"count": uint16(3),
		"ratio": 0.5,
		"tags":  []string{"a", "b"},
		"none":  nil,
		"ptr":   (*int)(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())
	count, _ := v.Field("count")
	assert.True(t, Equal(count, Int(3)))
	tags, _ := v.Field("tags")
	assert.Equal(t, 2, tags.Len())
	ptr, _ := v.Field("ptr")
	assert.True(t, ptr.IsNull())

	_, err = FromGo(uint64(math.MaxUint64))
	assert.ErrorIs(t, err, errors.ErrConversion)

	_, err = FromGo(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	e, _ := errors.As(err)
	assert.Equal(t, []string{"ch"}, e.Path)

	typed, err := FromGo(map[string]int{"a": 1})
	require.NoError(t, err)
	a, _ := typed.Field("a")
	assert.True(t, Equal(a, Int(1)))
}

func TestInterface(t *testing.T) {
	v := Tuple(String("a"), Int(2), Float(0.5), Bool(true), Null())
	assert.Equal(t, []any{"a", int64(2), 0.5, true, nil}, v.Interface())
}

func TestString(t *testing.T) {
	obj := NewObject()
	obj.Insert("b", Tuple(Int(1), Float(2)))
	obj.Insert("a", SafeString("x"))
	assert.Equal(t, `{"a": safe"x", "b": (1, 2.0)}`, ObjectOf(obj).String())
	assert.Equal(t, "ref:js#3(function)", HostRef(Ref{Owner: "js", Handle: 3, Tag: "function"}).String())
}

func TestJSON(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"a":[1,2.5,"x",true,null],"b":{}}`), &v))

	a, _ := v.Field("a")
	first, _ := a.Index(0)
	second, _ := a.Index(1)
	assert.True(t, Equal(first, Int(1)))
	assert.True(t, Equal(second, Float(2.5)))

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":[1,2.5,"x",true,null],"b":{}}`, string(out))

	_, err = json.Marshal(HostRef(Ref{Owner: "js", Handle: 1}))
	assert.Error(t, err)
	_, err = Float(math.Inf(1)).MarshalJSON()
	assert.ErrorIs(t, err, errors.ErrConversion)
}

// genValue produces nested values up to the given depth without host refs.
func genValue(depth int) gopter.Gen {
	scalars := []gopter.Gen{
		gen.Const(Null()),
		gen.AnyString().Map(String),
		gen.AnyString().Map(SafeString),
		gen.Bool().Map(Bool),
		gen.Int64().Map(Int),
		gen.Float64Range(-1e9, 1e9).Map(Float),
	}
	if depth <= 0 {
		return gen.OneGenOf(scalars...)
	}
	child := genValue(depth - 1)
	return gen.OneGenOf(append(scalars,
		gen.SliceOfN(3, child).Map(func(items []Value) Value { return Array(items...) }),
		gen.SliceOfN(3, child).Map(func(items []Value) Value { return Tuple(items...) }),
		gen.MapOf(gen.Identifier(), child).Map(func(m map[string]Value) Value { return MustFromGo(m) }),
	)...)
}

func TestProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("Equal is reflexive", prop.ForAll(
		func(v Value) bool { return Equal(v, v) },
		genValue(2),
	))

	properties.Property("FromGo(Interface) preserves non-safe, non-tuple values", prop.ForAll(
		func(v Value) bool {
			back, err := FromGo(v.Interface())
			if err != nil {
				return false
			}
			return Equal(normalize(v), back)
		},
		genValue(2),
	))

	properties.TestingRun(t)
}

// normalize maps the variants that Interface flattens: safe strings become
// normal strings and tuples become arrays.
func normalize(v Value) Value {
	switch v.Kind() {
	case KindString:
		s, _ := v.AsString()
		return String(s)
	case KindTuple, KindArray:
		items := make([]Value, v.Len())
		for i := range items {
			item, _ := v.Index(i)
			items[i] = normalize(item)
		}
		return Array(items...)
	case KindObject:
		obj := NewObject()
		src, _ := v.AsObject()
		src.Range(func(k string, item Value) bool {
			obj.Insert(k, normalize(item))
			return true
		})
		return ObjectOf(obj)
	}
	return v
}
