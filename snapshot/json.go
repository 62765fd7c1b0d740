package snapshot

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"

	"github.com/ndlib/verso/util"
)

// ErrUnsupported means a Go value has no snapshot representation.
var ErrUnsupported = errors.New("snapshot: unsupported type")

// Decode parses a JSON document into a Value.
func Decode(data []byte) (Value, error) {
	jv, err := jason.NewValueFromBytes(data)
	if err != nil {
		return Value{}, errors.Wrap(err, "snapshot: decode")
	}
	return fromJason(jv)
}

// fromJason converts a parsed jason tree. jason decodes numbers as
// json.Number, so no precision is lost on the way in.
func fromJason(jv *jason.Value) (Value, error) {
	// Null() rejects a null document root, so look at the raw data
	if jv.Interface() == nil {
		return Value{}, nil
	}
	if b, err := jv.Boolean(); err == nil {
		return BoolValue(b), nil
	}
	if n, err := jv.Number(); err == nil {
		return NumberText(n.String())
	}
	if s, err := jv.String(); err == nil {
		return StringValue(s), nil
	}
	if arr, err := jv.Array(); err == nil {
		items := make([]Value, len(arr))
		for i, x := range arr {
			items[i], err = fromJason(x)
			if err != nil {
				return Value{}, err
			}
		}
		return ListValue(items...), nil
	}
	obj, err := jv.Object()
	if err != nil {
		return Value{}, errors.Wrap(ErrUnsupported, "snapshot: unknown json node")
	}
	m := make(map[string]Value)
	for k, x := range obj.Map() {
		m[k], err = fromJason(x)
		if err != nil {
			return Value{}, err
		}
	}
	return MapValue(m), nil
}

// FromInterface converts ordinary Go data (as produced by encoding/json, or
// built by hand) into a Value. Supported are nil, bool, the integer and
// float types, json.Number, string, []interface{}, map[string]interface{},
// Value itself, and slices and string-keyed maps of those.
func FromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberText(t.String())
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i := range t {
			v, err := FromInterface(t[i])
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ListValue(items...), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, y := range t {
			v, err := FromInterface(y)
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %q", k)
			}
			m[k] = v
		}
		return MapValue(m), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := FromInterface(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ListValue(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := FromInterface(iter.Value().Interface())
			if err != nil {
				return Value{}, err
			}
			m[iter.Key().String()] = v
		}
		return MapValue(m), nil
	case reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint64:
		return NumberText(fmt.Sprint(rv.Interface()))
	}
	return Value{}, errors.Wrapf(ErrUnsupported, "%T", rv.Interface())
}

// Interface converts v back into plain Go data: nil, bool, json.Number,
// string, []interface{} and map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return json.Number(v.s)
	case String:
		return v.s
	case List:
		out := make([]interface{}, len(v.list))
		for i := range v.list {
			out[i] = v.list[i].Interface()
		}
		return out
	case Map:
		out := make(map[string]interface{}, len(v.m))
		for k, x := range v.m {
			out[k] = x.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON writes the canonical encoding of v: no insignificant
// whitespace and map keys in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		buf.WriteString(v.s)
	case String:
		if !utf8.ValidString(v.s) {
			return errors.Wrapf(ErrUnsupported, "snapshot: string %q is not valid UTF-8", v.s)
		}
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case List:
		buf.WriteByte('[')
		for i := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := v.list[i].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if !utf8.ValidString(k) {
				return errors.Wrapf(ErrUnsupported, "snapshot: key %q is not valid UTF-8", k)
			}
			b, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			if err := v.m[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Errorf("snapshot: bad kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	x, err := Decode(data)
	if err != nil {
		return err
	}
	*v = x
	return nil
}

// Hash returns the hex encoded SHA-256 digest of the canonical encoding of
// v. Structurally equal values have equal hashes.
func (v Value) Hash() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	hw := util.NewHashWriterPlain()
	hw.Write(b)
	return hw.SHA256()
}

// Verify reports whether recorded, a hex encoded SHA-256 digest, matches
// the canonical form of v. An empty digest always matches.
func (v Value) Verify(recorded string) bool {
	goal, err := hex.DecodeString(recorded)
	if err != nil {
		return false
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return false
	}
	hw := util.NewHashWriterPlain()
	hw.Write(b)
	_, ok := hw.CheckSHA256(goal)
	return ok
}

// String renders v as canonical JSON. It is meant for logging and test
// failure messages.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(b)
}
