// Package shareable moves script values between goja runtimes.
//
// A value captured in one runtime becomes an immutable, heap independent
// Shareable: a msgpack snapshot plus, for functions, a compiled program.
// Materialize rebuilds an equivalent value inside another runtime. Nothing
// in a Shareable references the source runtime's heap once Capture returns.
//
// Functions are transferred as source text. Free variables are not carried
// implicitly; a function lists the bindings it needs in an own property
// named __closure, whose values must be convertible by package value:
//
//	const threshold = 0.5
//	function detect(frame) { return frame.width * threshold }
//	detect.__closure = { threshold }
//	setProcessor(1, detect)
package shareable

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/framewire/value"
)

// ClosureProperty is the own property a function uses to declare captured
// bindings.
const ClosureProperty = "__closure"

// MaxPayloadSize bounds the snapshot payload (1 MiB).
const MaxPayloadSize = 1024 * 1024

// Kind distinguishes value snapshots from function snapshots.
type Kind int

const (
	// KindValue is a snapshot of data (anything package value converts).
	KindValue Kind = iota
	// KindFunction is a snapshot of a script function plus its bindings.
	KindFunction
)

func (k Kind) String() string {
	if k == KindFunction {
		return "function"
	}
	return "value"
}

// ErrNativeFunction is returned when capturing a Go-backed or bound function.
// Such functions have no source text to transfer.
var ErrNativeFunction = errors.New("native functions cannot be shared")

// CaptureErrorKind classifies capture failures.
type CaptureErrorKind int

const (
	// CaptureErrorClosure indicates invalid __closure bindings.
	CaptureErrorClosure CaptureErrorKind = iota
	// CaptureErrorSyntax indicates the function source failed to compile.
	CaptureErrorSyntax
	// CaptureErrorTooLarge indicates a payload exceeding MaxPayloadSize.
	CaptureErrorTooLarge
	// CaptureErrorEncode indicates a msgpack encoding failure.
	CaptureErrorEncode
)

// CaptureError represents a capture failure.
type CaptureError struct {
	Kind CaptureErrorKind
	Msg  string
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// reserved words cannot be declared as bindings.
var reserved = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true,
	"new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
}

// snapshot is the msgpack payload layout.
type snapshot struct {
	Kind    Kind   `msgpack:"kind"`
	Source  string `msgpack:"source,omitempty"`
	Closure any    `msgpack:"closure"`
	Value   any    `msgpack:"value"`
}

// Shareable is an immutable, engine independent snapshot of a script value.
// It is safe to pass between goroutines.
type Shareable struct {
	kind     Kind
	program  *goja.Program
	payload  []byte
	bindings []string
}

// Capture snapshots v, which belongs to rt. Must be called on the goroutine
// that owns rt.
func Capture(rt *goja.Runtime, v goja.Value) (*Shareable, error) {
	if _, ok := goja.AssertFunction(v); ok {
		return captureFunction(v.ToObject(rt))
	}

	val, err := value.FromJS(v)
	if err != nil {
		return nil, err
	}
	return seal(KindValue, nil, nil, snapshot{Kind: KindValue, Value: val.Native()})
}

func captureFunction(fn *goja.Object) (*Shareable, error) {
	src := fn.String()
	if strings.Contains(src, "[native code]") {
		return nil, ErrNativeFunction
	}

	closure := value.Map(nil)
	if raw := fn.Get(ClosureProperty); raw != nil && !goja.IsUndefined(raw) && !goja.IsNull(raw) {
		cv, err := value.FromJS(raw)
		if err != nil {
			return nil, &CaptureError{Kind: CaptureErrorClosure, Msg: "convert " + ClosureProperty, Err: err}
		}
		if cv.Kind != value.KindMap {
			return nil, &CaptureError{Kind: CaptureErrorClosure, Msg: ClosureProperty + " must be an object, got " + cv.Kind.String()}
		}
		closure = cv
	}

	names := closure.Keys()
	for _, name := range names {
		if !identifier.MatchString(name) || reserved[name] {
			return nil, &CaptureError{Kind: CaptureErrorClosure, Msg: fmt.Sprintf("binding %q is not an identifier", name)}
		}
		if name == ClosureProperty {
			return nil, &CaptureError{Kind: CaptureErrorClosure, Msg: fmt.Sprintf("binding %q is reserved", name)}
		}
	}

	program, err := goja.Compile("shareable", factorySource(src, names), false)
	if err != nil {
		return nil, &CaptureError{Kind: CaptureErrorSyntax, Msg: "compile function", Err: err}
	}

	return seal(KindFunction, program, names, snapshot{
		Kind:    KindFunction,
		Source:  src,
		Closure: closure.Native(),
	})
}

// factorySource wraps src in a function that binds each name from its
// argument and returns the rebuilt function.
func factorySource(src string, names []string) string {
	var b strings.Builder
	b.WriteString("(function(" + ClosureProperty + ") {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "var %s = %s[%q];\n", name, ClosureProperty, name)
	}
	b.WriteString("return (")
	b.WriteString(src)
	b.WriteString("\n);\n})")
	return b.String()
}

func seal(kind Kind, program *goja.Program, names []string, snap snapshot) (*Shareable, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&snap); err != nil {
		return nil, &CaptureError{Kind: CaptureErrorEncode, Msg: "encode snapshot", Err: err}
	}
	if buf.Len() > MaxPayloadSize {
		return nil, &CaptureError{
			Kind: CaptureErrorTooLarge,
			Msg:  fmt.Sprintf("snapshot size %d exceeds maximum %d", buf.Len(), MaxPayloadSize),
		}
	}
	return &Shareable{kind: kind, program: program, payload: buf.Bytes(), bindings: names}, nil
}

// Kind reports whether s holds a function or plain data.
func (s *Shareable) Kind() Kind {
	return s.kind
}

// Bindings returns the captured binding names in sorted order.
func (s *Shareable) Bindings() []string {
	return append([]string(nil), s.bindings...)
}

// Payload returns a copy of the msgpack snapshot.
func (s *Shareable) Payload() []byte {
	return bytes.Clone(s.payload)
}

// Source returns the captured function source, or "" for value snapshots.
func (s *Shareable) Source() (string, error) {
	snap, err := s.decode()
	if err != nil {
		return "", err
	}
	return snap.Source, nil
}

func (s *Shareable) decode() (snapshot, error) {
	var snap snapshot
	if err := msgpack.Unmarshal(s.payload, &snap); err != nil {
		return snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Materialize rebuilds the value inside rt. Each call yields a fresh value;
// repeated calls against the same runtime produce equivalent values.
// Must be called on the goroutine that owns rt.
func (s *Shareable) Materialize(rt *goja.Runtime) (goja.Value, error) {
	snap, err := s.decode()
	if err != nil {
		return nil, err
	}

	if s.kind == KindValue {
		v, err := value.FromNative(snap.Value)
		if err != nil {
			return nil, fmt.Errorf("materialize value: %w", err)
		}
		out, err := value.ToJS(rt, v)
		if err != nil {
			return nil, fmt.Errorf("materialize value: %w", err)
		}
		return out, nil
	}

	closure, err := value.FromNative(snap.Closure)
	if err != nil {
		return nil, fmt.Errorf("materialize closure: %w", err)
	}
	if closure.IsNull() {
		closure = value.Map(nil)
	}

	factoryVal, err := rt.RunProgram(s.program)
	if err != nil {
		return nil, fmt.Errorf("materialize function: %w", err)
	}
	factory, ok := goja.AssertFunction(factoryVal)
	if !ok {
		return nil, errors.New("materialize function: factory is not callable")
	}
	bindings, err := value.ToJS(rt, closure)
	if err != nil {
		return nil, fmt.Errorf("materialize closure: %w", err)
	}
	fn, err := factory(goja.Undefined(), bindings)
	if err != nil {
		return nil, fmt.Errorf("materialize function: %w", err)
	}
	return fn, nil
}

// Callable materializes a function snapshot and returns it as a Go callable.
func (s *Shareable) Callable(rt *goja.Runtime) (goja.Callable, error) {
	if s.kind != KindFunction {
		return nil, fmt.Errorf("materialize: snapshot is a %s, not a function", s.kind)
	}
	v, err := s.Materialize(rt)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("materialize: rebuilt value is not callable")
	}
	return fn, nil
}
