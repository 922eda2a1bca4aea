package clv

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/wippyai/synapse/errors"
)

// MarshalJSON encodes the JSON-compatible subset. Tuples become arrays,
// safe strings become plain strings, and host refs fail.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer, path []string) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return errors.Conversion(path, "non-finite float has no JSON form")
		}
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		buf.WriteString(s)
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindTuple, KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf, append(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj.m[k].writeJSON(buf, append(path, k)); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindHostRef:
		return errors.Conversion(path, "host ref has no JSON form")
	}
	return nil
}

// UnmarshalJSON decodes JSON into v. Numbers without a fraction or
// exponent that fit int64 become Int, all others Float.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeJSON(dec)
	if err != nil {
		return errors.Wrap(errors.PhaseConvert, errors.KindConversion, err, "decode JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.Conversion(nil, "trailing data after JSON value")
	}
	*v = out
	return nil
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, items: items}, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := kt.(string)
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				obj.m[key] = item
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: obj}, nil
		}
	}
	return Value{}, errors.Conversion(nil, "unexpected JSON token")
}
