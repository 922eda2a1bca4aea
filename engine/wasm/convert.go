package wasm

import (
	"math"
	"strconv"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/errors"
)

func encodeParams(types []api.ValueType, args []clv.Value) ([]uint64, error) {
	if len(types) != len(args) {
		return nil, errors.New(errors.PhaseConvert, errors.KindConversion).
			Path("args").
			Detail("export takes %d arguments, got %d", len(types), len(args)).
			User().
			Build()
	}
	params := make([]uint64, len(args))
	for i, t := range types {
		p, err := encodeParam(t, args[i])
		if err != nil {
			return nil, errors.WithPath(err, "args", strconv.Itoa(i))
		}
		params[i] = p
	}
	return params, nil
}

func encodeParam(t api.ValueType, v clv.Value) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		if b, err := v.AsBool(); err == nil {
			if b {
				return 1, nil
			}
			return 0, nil
		}
		i, err := v.AsInt()
		if err != nil {
			return 0, err
		}
		// results decode i32 as signed, so inputs share that range
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, errors.New(errors.PhaseConvert, errors.KindConversion).
				GoType("i32").
				Value(i).
				Detail("value out of range").
				User().
				Build()
		}
		return api.EncodeI32(int32(i)), nil
	case api.ValueTypeI64:
		i, err := v.AsInt()
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(i), nil
	case api.ValueTypeF32:
		f, err := v.AsFloat()
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := v.AsFloat()
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(f), nil
	}
	return 0, errors.New(errors.PhaseConvert, errors.KindConversion).
		NativeType(api.ValueTypeName(t)).
		Detail("unsupported parameter type").
		User().
		Build()
}

func (b *Backend) decodeResults(types []api.ValueType, results []uint64) (clv.Value, error) {
	switch len(types) {
	case 0:
		return clv.Null(), nil
	case 1:
		return b.decodeResult(types[0], results[0])
	}
	items := make([]clv.Value, len(types))
	for i, t := range types {
		v, err := b.decodeResult(t, results[i])
		if err != nil {
			return clv.Value{}, errors.WithPath(err, strconv.Itoa(i))
		}
		items[i] = v
	}
	return clv.Tuple(items...), nil
}

func (b *Backend) decodeResult(t api.ValueType, r uint64) (clv.Value, error) {
	switch t {
	case api.ValueTypeI32:
		return clv.Int(int64(api.DecodeI32(r))), nil
	case api.ValueTypeI64:
		return clv.Int(int64(r)), nil
	case api.ValueTypeF32:
		return clv.Float(float64(api.DecodeF32(r))), nil
	case api.ValueTypeF64:
		return clv.Float(api.DecodeF64(r)), nil
	case api.ValueTypeExternref:
		h, err := b.table.Put("externref", r)
		if err != nil {
			return clv.Value{}, errors.Wrap(errors.PhaseConvert, errors.KindConversion, err, "hold externref")
		}
		return clv.HostRef(clv.Ref{Owner: b.name, Tag: "externref", Handle: uint32(h)}), nil
	}
	return clv.Value{}, errors.New(errors.PhaseConvert, errors.KindConversion).
		NativeType(api.ValueTypeName(t)).
		Detail("unsupported result type").
		User().
		Build()
}
