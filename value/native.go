package value

import (
	"fmt"
	"math"
	"reflect"
)

// Native returns the canonical Go representation of v:
// nil, bool, int64, float64, string, []any, or map[string]any.
func (v Value) Native() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative converts a Go value into a Value.
//
// Accepts any integer, float, bool, string, slice/array, or string-keyed map
// kind, recursively, plus pointers and interfaces to those. A Value passes
// through unchanged. Everything else is ErrUnsupported.
func FromNative(x any) (Value, error) {
	return fromNative(x, "", 0)
}

func fromNative(x any, path string, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, tooDeep(path)
	}

	// Fast paths for the canonical representation.
	switch t := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int64:
		return Int(t), nil
	case int:
		return Int(int64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			ev, err := fromNative(e, indexPath(path, i), depth+1)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return Array(elems...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := fromNative(e, keyPath(path, k), depth+1)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return Map(m), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Float(float64(u)), nil
		}
		return Int(int64(u)), nil

	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil

	case reflect.String:
		return String(rv.String()), nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null, nil
		}
		elems := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := fromNative(rv.Index(i).Interface(), indexPath(path, i), depth+1)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return Array(elems...), nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, unsupported(path, fmt.Sprintf("map with %s keys", rv.Type().Key()))
		}
		if rv.IsNil() {
			return Null, nil
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			ev, err := fromNative(iter.Value().Interface(), keyPath(path, k), depth+1)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return Map(m), nil

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null, nil
		}
		return fromNative(rv.Elem().Interface(), path, depth+1)
	}

	return Value{}, unsupported(path, fmt.Sprintf("Go %T", x))
}

// FromNativeArgs converts a native argument list, naming positions args[i].
func FromNativeArgs(args []any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := fromNative(a, indexPath("args", i), 0)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
