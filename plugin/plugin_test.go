package plugin

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/frame"
	"github.com/pithecene-io/framewire/metrics"
	"github.com/pithecene-io/framewire/types"
	"github.com/pithecene-io/framewire/value"
)

type stubFrame struct{ releases int }

func (f *stubFrame) Width() int           { return 4 }
func (f *stubFrame) Height() int          { return 2 }
func (f *stubFrame) BytesPerRow() int     { return 16 }
func (f *stubFrame) PlanesCount() int     { return 1 }
func (f *stubFrame) Format() string       { return "rgb" }
func (f *stubFrame) Timestamp() time.Time { return time.Unix(0, 0) }
func (f *stubFrame) Data() []byte         { return make([]byte, 32) }
func (f *stubFrame) Release()             { f.releases++ }

type harness struct {
	rt        *goja.Runtime
	reg       *Registry
	collector *metrics.Collector
	native    *stubFrame
	handle    *frame.Handle
}

func newHarness(t *testing.T, plugins ...Plugin) *harness {
	t.Helper()
	h := &harness{
		rt:        goja.New(),
		collector: metrics.NewCollector(),
		native:    &stubFrame{},
	}
	h.reg = NewRegistry(nil, h.collector)
	for _, p := range plugins {
		if err := h.reg.Add(p); err != nil {
			t.Fatalf("Add(%s): %v", p.Name(), err)
		}
	}
	if err := h.reg.InstallAll(h.rt); err != nil {
		t.Fatalf("InstallAll: %v", err)
	}
	h.handle = frame.Wrap(h.rt, h.native)
	if err := h.rt.Set("frame", h.handle.Object()); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) eval(t *testing.T, src string) goja.Value {
	t.Helper()
	v, err := h.rt.RunString(src)
	if err != nil {
		t.Fatalf("RunString(%q): %v", src, err)
	}
	return v
}

var echo = Func("echo", func(_ types.NativeFrame, args []any) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
})

func TestDispatch_RoundTripSupportedSet(t *testing.T) {
	h := newHarness(t, echo)

	for _, lit := range []string{"null", "true", "42", "3.14", `"s"`, "[1, 2]", `({"k": 1})`} {
		t.Run(lit, func(t *testing.T) {
			want, err := value.FromJS(h.eval(t, lit))
			if err != nil {
				t.Fatal(err)
			}
			got, err := value.FromJS(h.eval(t, "__echo(frame, "+lit+")"))
			if err != nil {
				t.Fatalf("convert result: %v", err)
			}
			if !value.Equal(got, want) {
				t.Errorf("__echo(frame, %s) = %s, want %s", lit, got, want)
			}
		})
	}
}

func TestDispatch_UnsupportedArgument(t *testing.T) {
	h := newHarness(t, echo)

	for _, lit := range []string{"function() {}", "new Date(0)", "Symbol('x')", "[1, () => 2]"} {
		t.Run(lit, func(t *testing.T) {
			got := h.eval(t, `try { __echo(frame, `+lit+`); "no error" } catch (e) { e.message }`).String()
			if !strings.Contains(got, "unsupported") {
				t.Errorf("expected unsupported value error, got %q", got)
			}
		})
	}
}

func TestDispatch_ForwardsAllArgumentsInOrder(t *testing.T) {
	var seen []any
	record := Func("record", func(_ types.NativeFrame, args []any) (any, error) {
		seen = args
		return len(args), nil
	})
	h := newHarness(t, record)

	if n := h.eval(t, `__record(frame, 1, "two", [3])`).ToInteger(); n != 3 {
		t.Fatalf("plugin saw %d args, want 3", n)
	}
	if seen[0] != int64(1) || seen[1] != "two" {
		t.Errorf("args = %#v", seen)
	}
	if arr, ok := seen[2].([]any); !ok || len(arr) != 1 || arr[0] != int64(3) {
		t.Errorf("args[2] = %#v", seen[2])
	}
}

func TestDispatch_ConversionErrorNamesPosition(t *testing.T) {
	h := newHarness(t, echo)

	got := h.eval(t, `try { __echo(frame, 1, function() {}); "" } catch (e) { e.message }`).String()
	if !strings.Contains(got, "args[2]") {
		t.Errorf("expected error naming args[2], got %q", got)
	}
}

func TestDispatch_ReceivesNativeFrame(t *testing.T) {
	var got types.NativeFrame
	capture := Func("capture", func(f types.NativeFrame, _ []any) (any, error) {
		got = f
		return nil, nil
	})
	h := newHarness(t, capture)

	h.eval(t, "__capture(frame)")
	if got != h.native {
		t.Error("plugin did not receive the wrapped native frame")
	}
}

func TestDispatch_RequiresFrame(t *testing.T) {
	h := newHarness(t, echo)

	for _, args := range []string{"", "{}", "1", "null, 1"} {
		t.Run(args, func(t *testing.T) {
			got := h.eval(t, `try { __echo(`+args+`); "no error" } catch (e) { (e instanceof TypeError) + ":" + e.message }`).String()
			if !strings.HasPrefix(got, "true:") || !strings.Contains(got, ErrNotFrame.Error()) {
				t.Errorf("__echo(%s) = %q, want TypeError about frame", args, got)
			}
		})
	}
}

func TestDispatch_ReleasedFrame(t *testing.T) {
	h := newHarness(t, echo)
	h.eval(t, "var kept = frame")
	h.handle.Close()

	got := h.eval(t, `try { __echo(kept, 1); "no error" } catch (e) { e.message }`).String()
	if !strings.Contains(got, frame.ErrReleased.Error()) {
		t.Errorf("expected released error, got %q", got)
	}
}

func TestDispatch_NativeErrorsAreCatchable(t *testing.T) {
	fail := Func("fail", func(types.NativeFrame, []any) (any, error) {
		return nil, errors.New("boom")
	})
	explode := Func("explode", func(types.NativeFrame, []any) (any, error) {
		panic("kaboom")
	})
	badReturn := Func("badReturn", func(types.NativeFrame, []any) (any, error) {
		return struct{ X int }{1}, nil
	})
	h := newHarness(t, fail, explode, badReturn)

	tests := []struct {
		call string
		want string
	}{
		{"__fail(frame)", "boom"},
		{"__explode(frame)", "kaboom"},
		{"__badReturn(frame)", "return value"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			got := h.eval(t, `try { `+tt.call+`; "no error" } catch (e) { e.message }`).String()
			if !strings.Contains(got, tt.want) {
				t.Errorf("%s: message %q, want it to contain %q", tt.call, got, tt.want)
			}
		})
	}

	snap := h.collector.Snapshot()
	if snap.PluginCalls != 3 || snap.PluginErrors != 3 {
		t.Errorf("PluginCalls=%d PluginErrors=%d, want 3/3", snap.PluginCalls, snap.PluginErrors)
	}
	if snap.CallsByName["fail"] != 1 {
		t.Errorf("CallsByName = %v", snap.CallsByName)
	}
}

func TestRegistry_AddLookupNames(t *testing.T) {
	reg := NewRegistry(nil, nil)

	if err := reg.Add(Func("zeta", nil)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(Func("alpha", nil)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(Func("alpha", nil)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	for _, bad := range []string{"", "with space", "1st"} {
		if err := reg.Add(Func(bad, nil)); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Add(%q): expected ErrInvalidName, got %v", bad, err)
		}
	}
	if _, err := reg.Lookup("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("Names = %v, want [alpha zeta]", names)
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d", reg.Len())
	}
}

func TestRegistry_InstallUnknown(t *testing.T) {
	reg := NewRegistry(nil, nil)
	if err := reg.Install(goja.New(), "missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestGlobalName(t *testing.T) {
	if got := GlobalName("example_plugin"); got != "__example_plugin" {
		t.Errorf("GlobalName = %q", got)
	}
}
