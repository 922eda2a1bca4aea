package wasm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
)

// addWasm exports add(i64, i64) -> i64.
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7e, 0x7e, 0x01, 0x7e,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x7c, 0x0b,
}

// trapWasm exports boom() which executes unreachable.
var trapWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x08, 0x01, 0x04, 0x62, 0x6f, 0x6f, 0x6d, 0x00, 0x00,
	0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b,
}

func startBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(opts...)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func invoke(b *Backend, c engine.Callable, args ...clv.Value) (clv.Value, error) {
	inv, err := b.Invoke(context.Background(), &engine.Call{Callable: c, Args: args})
	if err != nil {
		return clv.Value{}, err
	}
	return inv.Value, nil
}

func TestInvoke_ImportedModule(t *testing.T) {
	b := startBackend(t, WithModule("math", addWasm))

	got, err := invoke(b, engine.Callable{ID: "add", Import: "math", Attr: "add"}, clv.Int(3), clv.Int(4))
	require.NoError(t, err)
	assert.True(t, clv.Equal(clv.Int(7), got))
}

func TestInvoke_InlineModule(t *testing.T) {
	b := startBackend(t)

	var states []engine.State
	call := &engine.Call{
		Callable: engine.Callable{ID: "inline-add", Code: addWasm, Attr: "add"},
		Args:     []clv.Value{clv.Int(-10), clv.Int(4)},
		Observe:  func(s engine.State) { states = append(states, s) },
	}
	inv, err := b.Invoke(context.Background(), call)
	require.NoError(t, err)
	assert.Nil(t, inv.Pending)
	assert.True(t, clv.Equal(clv.Int(-6), inv.Value))
	assert.Equal(t, []engine.State{engine.StateConverting, engine.StateInvoking}, states)

	// inline modules are anonymous, so repeated calls never collide
	got, err := invoke(b, engine.Callable{ID: "inline-add", Code: addWasm, Attr: "add"}, clv.Int(1), clv.Int(1))
	require.NoError(t, err)
	assert.True(t, clv.Equal(clv.Int(2), got))
}

func TestInvoke_Errors(t *testing.T) {
	b := startBackend(t, WithModule("math", addWasm), WithModule("trap", trapWasm))

	tests := []struct {
		name   string
		call   engine.Callable
		args   []clv.Value
		target error
	}{
		{"missing export", engine.Callable{ID: "x", Import: "math", Attr: "sub"}, nil, errors.ErrLookup},
		{"missing module", engine.Callable{ID: "x", Import: "other", Attr: "add"}, nil, errors.ErrLookup},
		{"arity", engine.Callable{ID: "x", Import: "math", Attr: "add"}, []clv.Value{clv.Int(1)}, errors.ErrConversion},
		{"wrong type", engine.Callable{ID: "x", Import: "math", Attr: "add"}, []clv.Value{clv.Int(1), clv.String("2")}, errors.ErrConversion},
		{"trap", engine.Callable{ID: "x", Import: "trap", Attr: "boom"}, nil, errors.ErrInvocation},
		{"invalid inline module", engine.Callable{ID: "x", Code: []byte("not wasm"), Attr: "add"}, nil, errors.ErrInvocation},
		{"invalid callable", engine.Callable{ID: "x", Attr: "add"}, nil, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(b, tt.call, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	// a trap does not poison the module
	got, err := invoke(b, engine.Callable{ID: "add", Import: "math", Attr: "add"}, clv.Int(2), clv.Int(2))
	require.NoError(t, err)
	assert.True(t, clv.Equal(clv.Int(4), got))
}

func TestStart_InvalidModule(t *testing.T) {
	b := New(WithModule("bad", []byte{0x00, 0x61}))
	err := b.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrInitialization)
}

func TestLifecycle(t *testing.T) {
	b := New(WithModule("math", addWasm), WithMemoryLimitPages(16), WithWASI())

	_, err := invoke(b, engine.Callable{ID: "add", Import: "math", Attr: "add"}, clv.Int(1), clv.Int(2))
	assert.ErrorIs(t, err, errors.ErrInitialization)

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))

	_, err = invoke(b, engine.Callable{ID: "add", Import: "math", Attr: "add"}, clv.Int(1), clv.Int(2))
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestEncodeParam(t *testing.T) {
	tests := []struct {
		name string
		typ  api.ValueType
		in   clv.Value
		want uint64
	}{
		{"bool true", api.ValueTypeI32, clv.Bool(true), 1},
		{"bool false", api.ValueTypeI32, clv.Bool(false), 0},
		{"negative i32", api.ValueTypeI32, clv.Int(-1), 0xffffffff},
		{"i64", api.ValueTypeI64, clv.Int(-2), api.EncodeI64(-2)},
		{"f64 from float", api.ValueTypeF64, clv.Float(1.5), api.EncodeF64(1.5)},
		{"f64 from int", api.ValueTypeF64, clv.Int(2), api.EncodeF64(2)},
		{"f32", api.ValueTypeF32, clv.Float(0.5), api.EncodeF32(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeParam(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, i := range []int64{1 << 40, math.MaxUint32, math.MaxInt32 + 1, math.MinInt32 - 1} {
		_, err := encodeParam(api.ValueTypeI32, clv.Int(i))
		assert.ErrorIs(t, err, errors.ErrConversion, "i32 accepted %d", i)
	}
}

func TestI32RoundTrip(t *testing.T) {
	b := New()
	for _, i := range []int64{math.MinInt32, -1, 0, math.MaxInt32} {
		enc, err := encodeParam(api.ValueTypeI32, clv.Int(i))
		require.NoError(t, err)
		got, err := b.decodeResult(api.ValueTypeI32, enc)
		require.NoError(t, err)
		assert.True(t, clv.Equal(clv.Int(i), got), "%d came back as %s", i, got)
	}
}

func TestDecodeResults(t *testing.T) {
	b := New()

	got, err := b.decodeResults(nil, nil)
	require.NoError(t, err)
	assert.True(t, got.IsNull())

	got, err = b.decodeResults(
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeF64},
		[]uint64{api.EncodeI32(-5), api.EncodeF64(2.5)},
	)
	require.NoError(t, err)
	assert.True(t, clv.Equal(clv.Tuple(clv.Int(-5), clv.Float(2.5)), got))

	ref, err := b.decodeResults([]api.ValueType{api.ValueTypeExternref}, []uint64{42})
	require.NoError(t, err)
	require.Equal(t, clv.KindHostRef, ref.Kind())
	r, _ := ref.AsHostRef()
	assert.Equal(t, DefaultName, r.Owner)
	assert.True(t, b.Release(r))
	assert.False(t, b.Release(r))
}
