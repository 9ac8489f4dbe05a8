package discordbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/buger/jsonparser"
)

// Kind identifies which variant a Document holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Document is an untyped JSON tree. The set of implementations is closed:
// Null, Bool, Number, String, Array and Object.
//
// Documents are treated as immutable values. Helpers on Object return
// new objects rather than modifying the receiver, so a step in a migration
// chain never observes changes made by a later step.
type Document interface {
	Kind() Kind
	document()
}

type (
	Null   struct{}
	Bool   bool
	Number string // literal JSON text, so snowflake IDs keep full precision
	String string
	Array  []Document
	Object map[string]Document
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) document()   {}
func (Bool) document()   {}
func (Number) document() {}
func (String) document() {}
func (Array) document()  {}
func (Object) document() {}

var errInvalidJSON = errors.New("invalid JSON")

// ParseDocument parses a single JSON value into a Document.
func ParseDocument(raw []byte) (Document, error) {
	// jsonparser skips over regions it is not asked about without
	// validating them, so well-formedness is checked up front.
	if !json.Valid(raw) {
		return nil, errInvalidJSON
	}
	value, dataType, _, err := jsonparser.Get(raw)
	if err != nil {
		return nil, err
	}
	return parseValue(value, dataType)
}

func parseValue(value []byte, dataType jsonparser.ValueType) (Document, error) {
	switch dataType {
	case jsonparser.Null:
		return Null{}, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case jsonparser.Number:
		return Number(value), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case jsonparser.Array:
		arr := Array{}
		var elemErr error
		_, err := jsonparser.ArrayEach(
			value,
			func(v []byte, t jsonparser.ValueType, _ int, err error) {
				if elemErr != nil {
					return
				}
				if err != nil {
					elemErr = err
					return
				}
				d, err := parseValue(v, t)
				if err != nil {
					elemErr = err
					return
				}
				arr = append(arr, d)
			},
		)
		if err != nil {
			return nil, err
		}
		if elemErr != nil {
			return nil, elemErr
		}
		return arr, nil
	case jsonparser.Object:
		obj := Object{}
		err := jsonparser.ObjectEach(
			value,
			func(key []byte, v []byte, t jsonparser.ValueType, _ int) error {
				d, err := parseValue(v, t)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				obj[string(key)] = d
				return nil
			},
		)
		if err != nil {
			return nil, err
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unexpected value type %s", dataType)
	}
}

// Equal reports whether a and b are structurally equal. Object key order
// is irrelevant and numbers compare by their literal text.
func Equal(a, b Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Number:
		return av == b.(Number)
	case String:
		return av == b.(String)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv := b.(Object)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts d into the plain Go representation produced by
// encoding/json with UseNumber: map[string]any, []any, string,
// json.Number, bool and nil.
func Native(d Document) any {
	switch v := d.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(v)
	case Number:
		return json.Number(v)
	case String:
		return string(v)
	case Array:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Native(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = Native(elem)
		}
		return out
	}
	return nil
}

// EncodeDocument renders d as JSON with object keys sorted. When pretty is
// set, output is indented with two spaces.
func EncodeDocument(d Document, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(Native(d), "", "  ")
	}
	return json.Marshal(Native(d))
}

// Keys returns the object's keys in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of o.
func (o Object) Clone() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Set returns a copy of o with key set to value.
func (o Object) Set(key string, value Document) Object {
	out := o.Clone()
	out[key] = value
	return out
}

// Delete returns a copy of o without key.
func (o Object) Delete(key string) Object {
	out := o.Clone()
	delete(out, key)
	return out
}

// Rename returns a copy of o with the value under oldKey moved to newKey,
// replacing anything already stored at newKey. If oldKey is absent and
// fallback is non-nil, fallback is stored at newKey unless newKey is
// already present.
func (o Object) Rename(oldKey, newKey string, fallback Document) Object {
	out := o.Clone()
	if v, ok := out[oldKey]; ok {
		delete(out, oldKey)
		out[newKey] = v
		return out
	}
	if _, exists := out[newKey]; !exists && fallback != nil {
		out[newKey] = fallback
	}
	return out
}

// MapValues returns a new object holding fn applied to every entry of o.
// Entries are visited in sorted key order and the first error is returned.
func (o Object) MapValues(fn func(key string, value Document) (Document, error)) (Object, error) {
	out := make(Object, len(o))
	for _, k := range o.Keys() {
		v, err := fn(k, o[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
