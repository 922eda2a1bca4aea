package clv

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/wippyai/synapse/errors"
)

// FromGo builds a Value from plain Go data: nil, Value, Ref, bool, string,
// integers, floats, slices and string-keyed maps.
func FromGo(x any) (Value, error) {
	return fromGo(x, nil)
}

// MustFromGo is like FromGo but panics on error. Intended for tests and
// literals.
func MustFromGo(x any) Value {
	v, err := FromGo(x)
	if err != nil {
		panic(err)
	}
	return v
}

func fromGo(x any, path []string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Ref:
		return HostRef(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		return fromUint(uint64(t), path)
	case uint64:
		return fromUint(t, path)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []Value:
		return Array(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromGo(item, append(path, strconv.Itoa(i)))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindArray, items: items}, nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]Value:
		obj := NewObject()
		for k, v := range t {
			obj.m[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	case map[string]any:
		obj := NewObject()
		for k, item := range t {
			v, err := fromGo(item, append(path, k))
			if err != nil {
				return Value{}, err
			}
			obj.m[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	case *Object:
		return ObjectOf(t), nil
	}
	return fromReflect(reflect.ValueOf(x), path)
}

func fromUint(u uint64, path []string) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, errors.Conversion(path, fmt.Sprintf("integer %d overflows int64", u))
	}
	return Int(int64(u)), nil
}

// fromReflect handles typed slices and maps not covered by the fast path.
func fromReflect(rv reflect.Value, path []string) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := fromGo(rv.Index(i).Interface(), append(path, strconv.Itoa(i)))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindArray, items: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := NewObject()
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			v, err := fromGo(iter.Value().Interface(), append(path, k))
			if err != nil {
				return Value{}, err
			}
			obj.m[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromGo(rv.Elem().Interface(), path)
	}
	return Value{}, errors.New(errors.PhaseConvert, errors.KindConversion).
		Path(path...).
		GoType(rv.Type().String()).
		Detail("no cross-language representation").
		User().
		Build()
}
