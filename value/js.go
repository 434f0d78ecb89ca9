package value

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

var plainObjectType = reflect.TypeOf(map[string]any{})

// FromJS converts a goja value into a Value.
// Must be called on the goroutine that owns the value's runtime.
func FromJS(v goja.Value) (Value, error) {
	return fromJS(v, "", 0)
}

// FromJSArgs converts call arguments, naming positions args[i] in errors.
// Conversion runs left to right; the first failure stops it.
func FromJSArgs(args []goja.Value, offset int) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := fromJS(a, indexPath("args", i+offset), 0)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fromJS(v goja.Value, path string, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, tooDeep(path)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Null, nil
	}

	obj, isObject := v.(*goja.Object)
	if !isObject {
		switch p := v.Export().(type) {
		case bool:
			return Bool(p), nil
		case int64:
			return Int(p), nil
		case float64:
			return Float(p), nil
		case string:
			return String(p), nil
		default:
			return Value{}, unsupported(path, fmt.Sprintf("script %T", p))
		}
	}

	switch obj.ClassName() {
	case "Array":
		length := obj.Get("length").ToInteger()
		if length > MaxArrayLength {
			return Value{}, &ConversionError{
				Path: path,
				Type: fmt.Sprintf("array of length %d exceeds %d", length, MaxArrayLength),
				Err:  ErrUnsupported,
			}
		}
		n := int(length)
		elems := make([]Value, n)
		for i := 0; i < n; i++ {
			ev, err := fromJS(obj.Get(strconv.Itoa(i)), indexPath(path, i), depth+1)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return Array(elems...), nil

	case "Object":
		// Host objects (frames, Go structs) also report class Object;
		// only plain objects export as string-keyed maps.
		if obj.ExportType() != plainObjectType {
			return Value{}, unsupported(path, fmt.Sprintf("host object %v", obj.ExportType()))
		}
		keys := obj.Keys()
		m := make(map[string]Value, len(keys))
		for _, k := range keys {
			ev, err := fromJS(obj.Get(k), keyPath(path, k), depth+1)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return Map(m), nil

	default:
		return Value{}, unsupported(path, "script "+obj.ClassName())
	}
}

// ToJS materializes v inside rt. Must be called on rt's owning goroutine.
// Map keys become own data properties in sorted order, so "__proto__"
// stays an ordinary key and property order is deterministic.
func ToJS(rt *goja.Runtime, v Value) (goja.Value, error) {
	return toJS(rt, v, "")
}

func toJS(rt *goja.Runtime, v Value, path string) (goja.Value, error) {
	switch v.Kind {
	case KindBool:
		return rt.ToValue(v.Bool), nil
	case KindInt:
		return rt.ToValue(v.Int), nil
	case KindFloat:
		return rt.ToValue(v.Float), nil
	case KindString:
		return rt.ToValue(v.Str), nil
	case KindArray:
		items := make([]any, len(v.Array))
		for i, e := range v.Array {
			ev, err := toJS(rt, e, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			items[i] = ev
		}
		return rt.NewArray(items...), nil
	case KindMap:
		obj := rt.NewObject()
		for _, k := range v.Keys() {
			kp := keyPath(path, k)
			ev, err := toJS(rt, v.Map[k], kp)
			if err != nil {
				return nil, err
			}
			if err := obj.DefineDataProperty(k, ev, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
				return nil, &ConversionError{Path: kp, Type: "property", Err: err}
			}
		}
		return obj, nil
	default:
		return goja.Null(), nil
	}
}
