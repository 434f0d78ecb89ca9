package value

import (
	"bytes"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	inputs := []Value{
		Null,
		Bool(true),
		Int(-5),
		Int(1 << 40),
		Float(2.5),
		String("frame"),
		Array(),
		Array(Int(1), String("two"), Null),
		Map(map[string]Value{}),
		Map(map[string]Value{
			"threshold": Float(0.75),
			"labels":    Array(String("cat"), String("dog")),
			"opts":      Map(map[string]Value{"enabled": Bool(false)}),
		}),
	}

	for _, in := range inputs {
		t.Run(in.String(), func(t *testing.T) {
			data, err := Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !Equal(out, in) {
				t.Errorf("round trip = %s, want %s", out, in)
			}
		})
	}
}

func TestEncode_DeterministicKeyOrder(t *testing.T) {
	a := Map(map[string]Value{"z": Int(1), "a": Int(2), "m": Int(3)})
	b := Map(map[string]Value{"m": Int(3), "z": Int(1), "a": Int(2)})

	da, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		db, err := Encode(b)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(da, db) {
			t.Fatal("equal maps encoded to different bytes")
		}
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte{0xc1}); err == nil {
		t.Fatal("expected error for reserved msgpack byte")
	}
}
