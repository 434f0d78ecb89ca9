// Package value converts between script values and native Go values.
//
// Value is a tagged union over the closed set of kinds that may cross the
// boundary between a script runtime and native code:
//
//	null      JS null/undefined      Go nil
//	bool      JS boolean             Go bool
//	int       JS integral number     Go int64 (any integer kind accepted)
//	float     JS number              Go float64 (float32 accepted)
//	string    JS string              Go string
//	array     JS Array               Go []any (any slice/array accepted)
//	map       JS plain object        Go map[string]any (any string-keyed map accepted)
//
// Anything else (functions, symbols, dates, host objects, structs, channels)
// fails with ErrUnsupported instead of being coerced.
package value

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// MaxDepth bounds recursive conversion. Cyclic structures hit this limit.
const MaxDepth = 64

// MaxArrayLength bounds the length of a converted script array.
const MaxArrayLength = 1 << 20

// Kind discriminates a Value.
type Kind uint8

// Supported kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMap
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindArray:  "array",
	KindMap:    "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ErrUnsupported is the sentinel for values outside the supported set.
var ErrUnsupported = errors.New("unsupported value")

// ConversionError reports where in a nested value conversion failed.
type ConversionError struct {
	// Path locates the offending element, e.g. "args[1].boxes[0]".
	Path string
	// Type describes the offending value.
	Type string
	// Err is ErrUnsupported or a more specific cause.
	Err error
}

func (e *ConversionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Type)
	}
	return fmt.Sprintf("%v at %s: %s", e.Err, e.Path, e.Type)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func unsupported(path, typ string) error {
	return &ConversionError{Path: path, Type: typ, Err: ErrUnsupported}
}

func tooDeep(path string) error {
	return &ConversionError{
		Path: path,
		Type: fmt.Sprintf("nesting deeper than %d (cyclic value?)", MaxDepth),
		Err:  ErrUnsupported,
	}
}

// Value is one converted value. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Array []Value
	Map   map[string]Value
}

// Null is the null value.
var Null = Value{Kind: KindNull}

// Bool returns a bool value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns an int value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Array returns an array value.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: KindArray, Array: elems}
}

// Map returns a map value.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindMap, Map: m}
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Keys returns the map keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality. NaN floats compare equal to each other.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		if math.IsNaN(a.Float) && math.IsNaN(b.Float) {
			return true
		}
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v in a compact JSON-like form for logs.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		fmt.Fprintf(b, "%t", v.Bool)
	case KindInt:
		fmt.Fprintf(b, "%d", v.Int)
	case KindFloat:
		fmt.Fprintf(b, "%g", v.Float)
	case KindString:
		fmt.Fprintf(b, "%q", v.Str)
	case KindArray:
		b.WriteByte('[')
		for i, e := range v.Array {
			if i > 0 {
				b.WriteByte(',')
			}
			e.write(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q:", k)
			v.Map[k].write(b)
		}
		b.WriteByte('}')
	}
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func keyPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
