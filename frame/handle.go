// Package frame exposes one native frame to scripts for one invocation.
//
// A Handle wraps a types.NativeFrame as a goja host object. Properties are
// read-only and computed from the native frame on first access, then cached.
// Close releases the native frame; after that every property except isValid
// throws a TypeError, so a handle retained past its invocation fails loudly
// instead of returning stale data.
//
// A Handle belongs to the goroutine that owns its runtime.
package frame

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/types"
)

// ErrReleased is returned when using a handle after Close.
var ErrReleased = errors.New("frame already released")

// Property names visible to scripts.
const (
	PropWidth       = "width"
	PropHeight      = "height"
	PropBytesPerRow = "bytesPerRow"
	PropPlanesCount = "planesCount"
	PropFormat      = "format"
	PropTimestamp   = "timestamp"
	PropIsValid     = "isValid"
	PropToString    = "toString"
)

var propertyNames = []string{
	PropWidth, PropHeight, PropBytesPerRow, PropPlanesCount,
	PropFormat, PropTimestamp, PropIsValid, PropToString,
}

// Handle is the script-visible wrapper around one native frame.
type Handle struct {
	rt     *goja.Runtime
	native types.NativeFrame
	obj    *goja.Object
	cache  map[string]goja.Value
	closed bool

	releaseOnce sync.Once
}

// Wrap takes the core's reference to nf and exposes it inside rt.
// The caller must Close the handle when the invocation returns.
func Wrap(rt *goja.Runtime, nf types.NativeFrame) *Handle {
	h := &Handle{
		rt:     rt,
		native: nf,
		cache:  make(map[string]goja.Value, len(propertyNames)),
	}
	h.obj = rt.NewDynamicObject(h)
	return h
}

// Object returns the script value passed to processors.
func (h *Handle) Object() *goja.Object {
	return h.obj
}

// Valid reports whether the handle is still open.
func (h *Handle) Valid() bool {
	return !h.closed
}

// Native returns the wrapped frame, or ErrReleased after Close.
func (h *Handle) Native() (types.NativeFrame, error) {
	if h.closed {
		return nil, ErrReleased
	}
	return h.native, nil
}

// Close invalidates the handle and releases the native frame.
// Safe to call more than once; Release runs exactly once.
func (h *Handle) Close() {
	h.closed = true
	h.cache = nil
	h.releaseOnce.Do(h.native.Release)
}

// Unwrap returns the Handle behind a script value produced by Wrap.
func Unwrap(v goja.Value) (*Handle, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	h, ok := obj.Export().(*Handle)
	return h, ok
}

// String describes the frame, e.g. "Frame(1920x1080 yuv)".
func (h *Handle) String() string {
	if h.closed {
		return "Frame(released)"
	}
	return fmt.Sprintf("Frame(%dx%d %s)", h.native.Width(), h.native.Height(), h.native.Format())
}

// Get implements goja.DynamicObject.
func (h *Handle) Get(key string) goja.Value {
	if key == PropIsValid {
		return h.rt.ToValue(!h.closed)
	}
	if h.closed {
		if isProperty(key) {
			h.throwReleased(key)
		}
		return nil
	}
	if v, ok := h.cache[key]; ok {
		return v
	}

	var v goja.Value
	switch key {
	case PropWidth:
		v = h.rt.ToValue(h.native.Width())
	case PropHeight:
		v = h.rt.ToValue(h.native.Height())
	case PropBytesPerRow:
		v = h.rt.ToValue(h.native.BytesPerRow())
	case PropPlanesCount:
		v = h.rt.ToValue(h.native.PlanesCount())
	case PropFormat:
		v = h.rt.ToValue(h.native.Format())
	case PropTimestamp:
		v = h.rt.ToValue(h.native.Timestamp().UnixMilli())
	case PropToString:
		v = h.rt.ToValue(func(goja.FunctionCall) goja.Value {
			if h.closed {
				h.throwReleased(PropToString)
			}
			return h.rt.ToValue(h.String())
		})
	default:
		return nil
	}
	h.cache[key] = v
	return v
}

// Set implements goja.DynamicObject. Frames are read-only.
func (h *Handle) Set(string, goja.Value) bool {
	return false
}

// Has implements goja.DynamicObject.
func (h *Handle) Has(key string) bool {
	return isProperty(key)
}

// Delete implements goja.DynamicObject. Frames are read-only.
func (h *Handle) Delete(string) bool {
	return false
}

// Keys implements goja.DynamicObject.
func (h *Handle) Keys() []string {
	return append([]string(nil), propertyNames...)
}

func (h *Handle) throwReleased(key string) {
	panic(h.rt.NewTypeError("frame.%s: frame is no longer valid (handles cannot be used after the processor returns)", key))
}

func isProperty(key string) bool {
	for _, p := range propertyNames {
		if p == key {
			return true
		}
	}
	return false
}
