package clv

// Object is a string-keyed map of values. An Object under construction may
// be mutated; once wrapped by ObjectOf the wrapped copy never changes. The
// zero value is an empty object ready to use.
type Object struct {
	m map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{m: make(map[string]Value)}
}

// Insert stores v under key. If key was present the previous value is
// returned with replaced set.
func (o *Object) Insert(key string, v Value) (prev Value, replaced bool) {
	if o.m == nil {
		o.m = make(map[string]Value)
	}
	prev, replaced = o.m[key]
	o.m[key] = v
	return prev, replaced
}

// Get returns the value under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.m[key]
	return v, ok
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	_, ok := o.m[key]
	delete(o.m, key)
	return ok
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.m)
}

// Keys returns the keys in sorted order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return sortedKeys(o.m)
}

// Range calls fn for each entry in key order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	for _, k := range o.Keys() {
		if !fn(k, o.m[k]) {
			return
		}
	}
}

// Clone returns a shallow copy. Nested values are immutable, so a shallow
// copy is independent of the original.
func (o *Object) Clone() *Object {
	out := &Object{m: make(map[string]Value, o.Len())}
	if o != nil {
		for k, v := range o.m {
			out.m[k] = v
		}
	}
	return out
}
