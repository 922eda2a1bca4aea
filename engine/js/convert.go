package js

import (
	"math"
	"math/big"
	"strconv"

	"github.com/dop251/goja"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/errors"
	"github.com/wippyai/synapse/resource"
)

// maxDepth bounds nesting during conversion. Cyclic structures hit it.
const maxDepth = 128

// maxSafeInt is the largest integer a JS number holds exactly. Ints beyond
// it cross as BigInt.
const maxSafeInt = 1<<53 - 1

// maxElements bounds the number of array elements and object keys read
// from the VM in one conversion.
const maxElements = 1 << 20

// converter translates between clv values and goja values. It must only be
// used on the event loop goroutine.
type converter struct {
	vm        *goja.Runtime
	table     *resource.Table
	objProto  *goja.Object
	freeze    goja.Callable
	isFrozen  goja.Callable
	safeTag    *goja.Symbol
	safeProto  *goja.Object
	floatTag   *goja.Symbol
	floatProto *goja.Object
}

func newConverter(vm *goja.Runtime, table *resource.Table) (*converter, error) {
	objectCtor := vm.GlobalObject().Get("Object").ToObject(vm)
	freeze, ok := goja.AssertFunction(objectCtor.Get("freeze"))
	if !ok {
		return nil, errors.Initialization("Object.freeze is not callable", nil)
	}
	isFrozen, ok := goja.AssertFunction(objectCtor.Get("isFrozen"))
	if !ok {
		return nil, errors.Initialization("Object.isFrozen is not callable", nil)
	}

	c := &converter{
		vm:       vm,
		table:    table,
		objProto: objectCtor.Get("prototype").ToObject(vm),
		freeze:   freeze,
		isFrozen: isFrozen,
		safeTag:  goja.NewSymbol("synapse.safe"),
		floatTag: goja.NewSymbol("synapse.float"),
	}

	// Safe strings share a prototype so they print and concatenate as text.
	c.safeProto = vm.NewObject()
	_ = c.safeProto.Set("toString", func(call goja.FunctionCall) goja.Value {
		return call.This.ToObject(vm).Get("value")
	})
	_ = c.safeProto.Set("valueOf", func(call goja.FunctionCall) goja.Value {
		return call.This.ToObject(vm).Get("value")
	})
	_ = c.safeProto.SetSymbol(c.safeTag, true)

	// The VM stores integral doubles as integers, so integral floats are
	// boxed to come back as floats. Arithmetic goes through valueOf.
	c.floatProto = vm.NewObject()
	unbox := func(call goja.FunctionCall) goja.Value {
		return call.This.ToObject(vm).Get("value")
	}
	_ = c.floatProto.Set("valueOf", unbox)
	_ = c.floatProto.Set("toJSON", unbox)
	_ = c.floatProto.Set("toString", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(call.This.ToObject(vm).Get("value").String())
	})
	_ = c.floatProto.SetSymbol(c.floatTag, true)
	return c, nil
}

// toNative converts v for use inside the VM.
func (c *converter) toNative(v clv.Value) (goja.Value, error) {
	return c.toNativeAt(v, nil, 0)
}

func (c *converter) toNativeAt(v clv.Value, path []string, depth int) (goja.Value, error) {
	if depth > maxDepth {
		return nil, errors.Conversion(path, "value nested too deeply")
	}

	switch v.Kind() {
	case clv.KindNull:
		return goja.Null(), nil
	case clv.KindString:
		s, _ := v.AsString()
		if v.StringKind() == clv.Safe {
			obj := c.vm.CreateObject(c.safeProto)
			_ = obj.Set("value", s)
			return obj, nil
		}
		return c.vm.ToValue(s), nil
	case clv.KindBool:
		b, _ := v.AsBool()
		return c.vm.ToValue(b), nil
	case clv.KindInt:
		i, _ := v.AsInt()
		if i > maxSafeInt || i < -maxSafeInt {
			return c.vm.ToValue(big.NewInt(i)), nil
		}
		return c.vm.ToValue(i), nil
	case clv.KindFloat:
		f, _ := v.AsFloat()
		if integral(f) {
			obj := c.vm.CreateObject(c.floatProto)
			_ = obj.Set("value", f)
			return obj, nil
		}
		return c.vm.ToValue(f), nil
	case clv.KindTuple, clv.KindArray:
		items := make([]any, v.Len())
		for i := range items {
			item, _ := v.Index(i)
			nv, err := c.toNativeAt(item, append(path, strconv.Itoa(i)), depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = nv
		}
		arr := c.vm.NewArray(items...)
		if v.Kind() == clv.KindTuple {
			if _, err := c.freeze(goja.Undefined(), arr); err != nil {
				return nil, errors.Wrap(errors.PhaseConvert, errors.KindConversion, err, "freeze tuple")
			}
		}
		return arr, nil
	case clv.KindObject:
		src, _ := v.AsObject()
		obj := c.vm.NewObject()
		var convErr error
		src.Range(func(k string, item clv.Value) bool {
			nv, err := c.toNativeAt(item, append(path, k), depth+1)
			if err != nil {
				convErr = err
				return false
			}
			// a plain Set would treat __proto__ as the prototype setter
			if err := obj.DefineDataProperty(k, nv, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
				convErr = errors.Wrap(errors.PhaseConvert, errors.KindConversion, err, "set key "+k)
				return false
			}
			return true
		})
		if convErr != nil {
			return nil, convErr
		}
		return obj, nil
	case clv.KindHostRef:
		ref, _ := v.AsHostRef()
		if ref.Owner != c.table.Owner() {
			return nil, errors.New(errors.PhaseConvert, errors.KindConversion).
				Path(path...).
				Value(ref).
				Detail("host ref owned by %q cannot be used by %q", ref.Owner, c.table.Owner()).
				User().
				Build()
		}
		native, _, ok := c.table.Get(resource.Handle(ref.Handle))
		if !ok {
			return nil, errors.New(errors.PhaseConvert, errors.KindConversion).
				Path(path...).
				Value(ref).
				Detail("host ref %s is unknown or released", ref).
				User().
				Build()
		}
		return native.(goja.Value), nil
	}
	return nil, errors.Conversion(path, "unknown value kind "+v.Kind().String())
}

// fromNative converts a VM value to a clv value. Values with no
// cross-language form are parked in the handle table.
func (c *converter) fromNative(v goja.Value) (clv.Value, error) {
	var out clv.Value
	var err error
	if ex := c.vm.Try(func() {
		left := maxElements
		out, err = c.fromNativeAt(v, nil, 0, &left)
	}); ex != nil {
		return clv.Value{}, errors.New(errors.PhaseConvert, errors.KindConversion).
			Cause(ex).
			Detail("exception while reading value").
			User().
			Build()
	}
	return out, err
}

// fromNativeAt converts v at path. left is the element budget shared by the
// whole conversion.
func (c *converter) fromNativeAt(v goja.Value, path []string, depth int, left *int) (clv.Value, error) {
	if depth > maxDepth {
		return clv.Value{}, errors.Conversion(path, "value nested too deeply")
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return clv.Null(), nil
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return c.park("symbol", sym, path)
	}

	obj, isObj := v.(*goja.Object)
	if !isObj {
		switch x := v.Export().(type) {
		case string:
			return clv.String(x), nil
		case bool:
			return clv.Bool(x), nil
		case int64:
			return clv.Int(x), nil
		case float64:
			return clv.Float(x), nil
		case *big.Int:
			if x.IsInt64() {
				return clv.Int(x.Int64()), nil
			}
			return c.park("bigint", v, path)
		}
		return c.park("primitive", v, path)
	}

	if tag := obj.GetSymbol(c.safeTag); tag != nil && tag.ToBoolean() {
		return clv.SafeString(obj.Get("value").String()), nil
	}
	if tag := obj.GetSymbol(c.floatTag); tag != nil && tag.ToBoolean() {
		return clv.Float(obj.Get("value").ToFloat()), nil
	}

	switch obj.ClassName() {
	case "Array":
		length := obj.Get("length").ToInteger()
		if length > int64(*left) {
			return clv.Value{}, errors.Conversion(path, "array too large")
		}
		n := int(length)
		*left -= n
		items := make([]clv.Value, n)
		for i := 0; i < n; i++ {
			item, err := c.fromNativeAt(obj.Get(strconv.Itoa(i)), append(path, strconv.Itoa(i)), depth+1, left)
			if err != nil {
				return clv.Value{}, err
			}
			items[i] = item
		}
		frozen, err := c.isFrozen(goja.Undefined(), obj)
		if err != nil {
			return clv.Value{}, errors.Wrap(errors.PhaseConvert, errors.KindConversion, err, "inspect array")
		}
		if frozen.ToBoolean() {
			return clv.Tuple(items...), nil
		}
		return clv.Array(items...), nil
	case "Object":
		if proto := obj.Prototype(); proto != nil && !proto.SameAs(c.objProto) {
			return c.park("object", obj, path)
		}
		keys := obj.Keys()
		if len(keys) > *left {
			return clv.Value{}, errors.Conversion(path, "object too large")
		}
		*left -= len(keys)
		out := clv.NewObject()
		for _, k := range keys {
			item, err := c.fromNativeAt(obj.Get(k), append(path, k), depth+1, left)
			if err != nil {
				return clv.Value{}, err
			}
			out.Insert(k, item)
		}
		return clv.ObjectOf(out), nil
	case "Function", "AsyncFunction", "GeneratorFunction":
		return c.park("function", obj, path)
	case "Promise":
		return c.park("promise", obj, path)
	}
	return c.park(obj.ClassName(), obj, path)
}

func (c *converter) park(tag string, v goja.Value, path []string) (clv.Value, error) {
	h, err := c.table.Put(tag, v)
	if err != nil {
		return clv.Value{}, errors.New(errors.PhaseConvert, errors.KindConversion).
			Path(path...).
			Cause(err).
			Detail("cannot hold %s value", tag).
			Build()
	}
	return clv.HostRef(clv.Ref{Owner: c.table.Owner(), Handle: uint32(h), Tag: tag}), nil
}

// integral reports whether the VM would hold f as an integer.
func integral(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f) && (f != 0 || !math.Signbit(f))
}
