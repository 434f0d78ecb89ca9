package value

import (
	"errors"
	"math"
	"testing"
)

func TestFromNative_SupportedSet(t *testing.T) {
	type label string

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int8", int8(-3), Int(-3)},
		{"uint16", uint16(9), Int(9)},
		{"float32", float32(0.5), Float(0.5)},
		{"float64", 3.14, Float(3.14)},
		{"string", "s", String("s")},
		{"named string", label("x"), String("x")},
		{"slice", []int{1, 2}, Array(Int(1), Int(2))},
		{"array", [2]string{"a", "b"}, Array(String("a"), String("b"))},
		{"nil slice", []string(nil), Null},
		{"map", map[string]int{"k": 1}, Map(map[string]Value{"k": Int(1)})},
		{"nested any", map[string]any{"a": []any{true, nil}}, Map(map[string]Value{
			"a": Array(Bool(true), Null),
		})},
		{"pointer", ptr(7), Int(7)},
		{"value passthrough", String("v"), String("v")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromNative(tt.in)
			if err != nil {
				t.Fatalf("FromNative(%v) error: %v", tt.in, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("FromNative(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestFromNative_Unsupported(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		wantPath string
	}{
		{"struct", struct{ A int }{1}, ""},
		{"func", func() {}, ""},
		{"chan", make(chan int), ""},
		{"int keys", map[int]string{1: "a"}, ""},
		{"nested struct", map[string]any{"boxes": []any{1, struct{}{}}}, "boxes[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromNative(tt.in)
			if !errors.Is(err, ErrUnsupported) {
				t.Fatalf("expected ErrUnsupported, got %v", err)
			}
			var convErr *ConversionError
			if !errors.As(err, &convErr) {
				t.Fatalf("expected *ConversionError, got %T", err)
			}
			if convErr.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", convErr.Path, tt.wantPath)
			}
		})
	}
}

func TestFromNative_CyclicHitsDepthLimit(t *testing.T) {
	m := map[string]any{}
	m["self"] = m

	_, err := FromNative(m)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for cyclic map, got %v", err)
	}
}

func TestFromNativeArgs_Paths(t *testing.T) {
	_, err := FromNativeArgs([]any{1, "ok", struct{}{}})
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %v", err)
	}
	if convErr.Path != "args[2]" {
		t.Errorf("Path = %q, want args[2]", convErr.Path)
	}
}

func TestNative_Canonical(t *testing.T) {
	v := Map(map[string]Value{
		"n":   Null,
		"i":   Int(1),
		"f":   Float(1.5),
		"arr": Array(String("x")),
	})

	native, ok := v.Native().(map[string]any)
	if !ok {
		t.Fatalf("Native() = %T, want map[string]any", v.Native())
	}
	if native["n"] != nil {
		t.Errorf("n = %v, want nil", native["n"])
	}
	if native["i"] != int64(1) {
		t.Errorf("i = %#v, want int64(1)", native["i"])
	}
	if native["f"] != 1.5 {
		t.Errorf("f = %#v, want 1.5", native["f"])
	}
	arr, ok := native["arr"].([]any)
	if !ok || len(arr) != 1 || arr[0] != "x" {
		t.Errorf("arr = %#v", native["arr"])
	}
}

func TestEqual(t *testing.T) {
	if Equal(Int(1), Float(1)) {
		t.Error("int and float of the same magnitude must differ by kind")
	}
	if !Equal(Float(math.NaN()), Float(math.NaN())) {
		t.Error("NaN must equal NaN for round-trip checks")
	}
	if Equal(Array(Int(1)), Array(Int(1), Int(2))) {
		t.Error("arrays of different length must differ")
	}
	if Equal(Map(map[string]Value{"a": Int(1)}), Map(map[string]Value{"b": Int(1)})) {
		t.Error("maps with different keys must differ")
	}
}

func TestString_Deterministic(t *testing.T) {
	v := Map(map[string]Value{"b": Int(2), "a": Array(Bool(true), Null, String("s"))})
	want := `{"a":[true,null,"s"],"b":2}`
	if got := v.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestKind_String(t *testing.T) {
	if KindMap.String() != "map" {
		t.Errorf("KindMap.String() = %q", KindMap.String())
	}
	if Kind(99).String() != "Kind(99)" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
}
