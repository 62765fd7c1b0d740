/*
Package snapshot defines the tagged tree value captured by a version.

A Value is one of Null, Bool, Number, String, List, or Map. Lists and maps
hold further Values. Numbers are kept as their canonical decimal text so
any integer in the int64 range survives a serialization round trip.

Values are treated as immutable once constructed. The constructors do not
copy their arguments, so callers should not modify a slice or map after
passing it in.
*/
package snapshot

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Kind tags the type of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	List
	Map
)

var kindNames = [...]string{"null", "bool", "number", "string", "list", "map"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// A Value is a node in a snapshot tree. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents, or canonical number text
	list []Value
	m    map[string]Value
}

var (
	// ErrBadNumber means a number's text could not be parsed.
	ErrBadNumber = errors.New("snapshot: malformed number")
)

// NullValue returns the Null value.
func NullValue() Value { return Value{} }

// BoolValue returns a Bool value.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// Int returns a Number value holding n.
func Int(n int64) Value { return Value{kind: Number, s: strconv.FormatInt(n, 10)} }

// Float returns a Number value holding f. NaN and the infinities have no
// JSON representation and are returned as an error.
func Float(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.Wrapf(ErrBadNumber, "%v", f)
	}
	return Value{kind: Number, s: formatFloat(f)}, nil
}

// NumberText returns a Number value from its decimal text, which is
// normalized so equal numbers have equal text ("1.0" and "1" are the same).
func NumberText(text string) (Value, error) {
	s, err := canonicalNumber(text)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: Number, s: s}, nil
}

// ListValue returns a List value with the given items.
func ListValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: List, list: items}
}

// MapValue returns a Map value. A nil map yields an empty Map.
func MapValue(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{kind: Map, m: m}
}

func canonicalNumber(text string) (string, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.Wrapf(ErrBadNumber, "%q", text)
	}
	return formatFloat(f), nil
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Kind returns the type tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsContainer is true for lists and maps.
func (v Value) IsContainer() bool { return v.kind == List || v.kind == Map }

// AsBool returns the boolean held by v, or false if v is not a Bool.
func (v Value) AsBool() bool { return v.kind == Bool && v.b }

// AsString returns the contents of a String, or "" for other kinds.
func (v Value) AsString() string {
	if v.kind != String {
		return ""
	}
	return v.s
}

// AsNumber returns the canonical text of a Number, or "" for other kinds.
func (v Value) AsNumber() json.Number {
	if v.kind != Number {
		return ""
	}
	return json.Number(v.s)
}

// Len is the number of items in a list or entries in a map.
func (v Value) Len() int {
	switch v.kind {
	case List:
		return len(v.list)
	case Map:
		return len(v.m)
	}
	return 0
}

// Index returns the i-th item of a list. It returns false if v is not a
// list or i is out of range.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != List || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// Items returns the items of a list. The slice must not be modified.
func (v Value) Items() []Value {
	if v.kind != List {
		return nil
	}
	return v.list
}

// Get returns the entry with the given key in a map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Map {
		return Value{}, false
	}
	x, ok := v.m[key]
	return x, ok
}

// Keys returns the keys of a map in sorted order.
func (v Value) Keys() []string {
	if v.kind != Map {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether a and b are structurally equal: same kind and the
// same contents, recursively. Map key order is irrelevant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number, String:
		return a.s == b.s
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Map:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, x := range a.m {
			y, ok := b.m[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	}
	return false
}

// With returns a copy of the map v with key set to x. The receiver is not
// changed. If v is not a map, a new map holding only key is returned.
func (v Value) With(key string, x Value) Value {
	m := make(map[string]Value, len(v.m)+1)
	if v.kind == Map {
		for k, y := range v.m {
			m[k] = y
		}
	}
	m[key] = x
	return Value{kind: Map, m: m}
}

// Without returns a copy of the map v with key removed.
func (v Value) Without(key string) Value {
	m := make(map[string]Value, len(v.m))
	for k, y := range v.m {
		if k != key {
			m[k] = y
		}
	}
	return Value{kind: Map, m: m}
}

// SetIndex returns a copy of the list v with item i replaced by x. If i is
// equal to the length of the list x is appended.
func (v Value) SetIndex(i int, x Value) (Value, bool) {
	if v.kind != List || i < 0 || i > len(v.list) {
		return v, false
	}
	list := make([]Value, len(v.list), len(v.list)+1)
	copy(list, v.list)
	if i == len(list) {
		list = append(list, x)
	} else {
		list[i] = x
	}
	return Value{kind: List, list: list}, true
}

// Truncate returns a copy of the list v holding only its first n items.
func (v Value) Truncate(n int) Value {
	if v.kind != List || n >= len(v.list) {
		return v
	}
	if n < 0 {
		n = 0
	}
	list := make([]Value, n)
	copy(list, v.list[:n])
	return Value{kind: List, list: list}
}
