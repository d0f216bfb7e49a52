// Package response wraps decoded JSON payloads in a Value that exposes
// object fields and array elements through typed accessors.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies the JSON type held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// ErrFieldNotFound is returned by Field when the object has no such key.
var ErrFieldNotFound = errors.New("field not found")

// TypeError is returned when an accessor does not match the value's kind.
type TypeError struct {
	Want Kind
	Got  Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

// Value is a decoded JSON value. Numbers are kept as json.Number so integer
// and decimal representations survive a round trip unchanged.
type Value struct {
	raw any
}

// Parse decodes data into a Value. An empty body decodes to null.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, errors.New("unexpected data after top-level JSON value")
	}
	return Value{raw: raw}, nil
}

// Wrap builds a Value from a Go value using the encoding/json data model.
func Wrap(v any) Value {
	return Value{raw: v}
}

// Kind returns the JSON type of the value.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case json.Number, float64, float32, int, int64:
		return Number
	case string:
		return String
	case []any:
		return Array
	case map[string]any:
		return Object
	default:
		return Null
	}
}

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool {
	return v.raw == nil
}

// Interface returns the underlying decoded value.
func (v Value) Interface() any {
	return v.raw
}

// Field returns the member named name of an object value.
func (v Value) Field(name string) (Value, error) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return Value{}, &TypeError{Want: Object, Got: v.Kind()}
	}
	member, ok := m[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	return Value{raw: member}, nil
}

// Get is like Field but returns a null Value when the field is absent.
func (v Value) Get(name string) Value {
	f, err := v.Field(name)
	if err != nil {
		return Value{}
	}
	return f
}

// Has reports whether an object value has the key name.
func (v Value) Has(name string) bool {
	_, err := v.Field(name)
	return err == nil
}

// Keys returns the sorted member names of an object value.
func (v Value) Keys() []string {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of elements of an array or members of an object.
func (v Value) Len() int {
	switch t := v.raw.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

// Index returns element i of an array value.
func (v Value) Index(i int) (Value, error) {
	arr, ok := v.raw.([]any)
	if !ok {
		return Value{}, &TypeError{Want: Array, Got: v.Kind()}
	}
	if i < 0 || i >= len(arr) {
		return Value{}, fmt.Errorf("index %d out of range [0,%d)", i, len(arr))
	}
	return Value{raw: arr[i]}, nil
}

// Items returns the elements of an array value in order.
func (v Value) Items() ([]Value, error) {
	arr, ok := v.raw.([]any)
	if !ok {
		return nil, &TypeError{Want: Array, Got: v.Kind()}
	}
	items := make([]Value, len(arr))
	for i, el := range arr {
		items[i] = Value{raw: el}
	}
	return items, nil
}

// String returns the contents of a string value.
func (v Value) String() (string, error) {
	s, ok := v.raw.(string)
	if !ok {
		return "", &TypeError{Want: String, Got: v.Kind()}
	}
	return s, nil
}

// Bool returns the contents of a boolean value.
func (v Value) Bool() (bool, error) {
	b, ok := v.raw.(bool)
	if !ok {
		return false, &TypeError{Want: Bool, Got: v.Kind()}
	}
	return b, nil
}

// Int returns a number value as int64.
func (v Value) Int() (int64, error) {
	switch n := v.raw.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, &TypeError{Want: Number, Got: v.Kind()}
	}
}

// Float returns a number value as float64.
func (v Value) Float() (float64, error) {
	switch n := v.raw.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, &TypeError{Want: Number, Got: v.Kind()}
	}
}

// Text renders scalars as plain text and composite values as compact JSON.
func (v Value) Text() string {
	switch t := v.raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// Path follows a sequence of object keys, e.g. Path("data", "user", "name").
func (v Value) Path(keys ...string) (Value, error) {
	cur := v
	for _, k := range keys {
		next, err := cur.Field(k)
		if err != nil {
			return Value{}, err
		}
		cur = next
	}
	return cur, nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Decode re-encodes the value into dst, e.g. a response struct.
func (v Value) Decode(dst any) error {
	data, err := json.Marshal(v.raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
