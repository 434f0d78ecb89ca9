package runtime

import (
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/pithecene-io/framewire/shareable"
	"github.com/pithecene-io/framewire/types"
)

// Bridge global names.
const (
	SetProcessorGlobal   = "setProcessor"
	UnsetProcessorGlobal = "unsetProcessor"
)

// InstallBridgeFunctions defines setProcessor and unsetProcessor on rt, the
// primary runtime. Must be called on rt's goroutine. It may run before
// Initialize; the globals then throw the uninitialized error when called.
func (m *Manager) InstallBridgeFunctions(rt *goja.Runtime) error {
	if err := rt.Set(SetProcessorGlobal, func(call goja.FunctionCall) goja.Value {
		id, err := sourceIDArg(SetProcessorGlobal, call.Argument(0))
		if err != nil {
			panic(scriptError(rt, err))
		}
		if err := m.SetProcessor(rt, id, call.Argument(1)); err != nil {
			panic(scriptError(rt, err))
		}
		return goja.Undefined()
	}); err != nil {
		return fmt.Errorf("install %s: %w", SetProcessorGlobal, err)
	}

	if err := rt.Set(UnsetProcessorGlobal, func(call goja.FunctionCall) goja.Value {
		id, err := sourceIDArg(UnsetProcessorGlobal, call.Argument(0))
		if err != nil {
			panic(scriptError(rt, err))
		}
		if err := m.UnsetProcessor(id); err != nil {
			panic(scriptError(rt, err))
		}
		return goja.Undefined()
	}); err != nil {
		return fmt.Errorf("install %s: %w", UnsetProcessorGlobal, err)
	}

	m.logger.Debug("bridge functions installed", nil)
	return nil
}

// maxSafeInteger is the largest integer a script number holds exactly.
const maxSafeInteger = 1<<53 - 1

// sourceIDArg enforces the sourceId contract: an integral number.
func sourceIDArg(fn string, v goja.Value) (int, error) {
	argErr := &ArgumentError{Func: fn, Param: "sourceId", Want: "an integer number"}
	switch n := v.Export().(type) {
	case int64:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) > maxSafeInteger {
			return 0, argErr
		}
		return int(n), nil
	default:
		return 0, argErr
	}
}

// SetProcessor captures fn from rt (the primary runtime) and installs it as
// the processor for sourceID, replacing any previous one. Must be called on
// rt's goroutine.
//
// Nothing changes unless every check passes: fn must be callable, the
// manager initialized, the source known and fn capturable.
func (m *Manager) SetProcessor(rt *goja.Runtime, sourceID int, fn goja.Value) error {
	if _, ok := goja.AssertFunction(fn); !ok {
		return &ArgumentError{Func: SetProcessorGlobal, Param: "fn", Want: "a function"}
	}

	// initMu orders the slot publish against Close.
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if !m.Initialized() {
		return ErrUninitialized
	}
	source, ok := m.finder.FindSourceByID(sourceID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrSourceNotFound, sourceID)
	}

	worklet, err := shareable.Capture(rt, fn)
	if err != nil {
		return fmt.Errorf("%s: %w", SetProcessorGlobal, err)
	}

	p := &Processor{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		SetAt:    time.Now(),
		source:   source,
		worklet:  worklet,
	}
	prev, replaced := m.slots.Set(sourceID, p)
	source.SetFrameCallback(func(f types.NativeFrame) {
		m.deliver(sourceID, f)
	})
	m.collector.IncProcessorSet()

	fields := map[string]any{"source_id": sourceID, "processor_id": p.ID}
	if replaced {
		fields["replaced"] = prev.ID
	}
	m.logger.Info("processor set", fields)
	return nil
}

// UnsetProcessor clears the processor for sourceID. Clearing an empty slot
// is a no-op. Frames already handed to the scheduler still run with the
// processor they captured.
func (m *Manager) UnsetProcessor(sourceID int) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if !m.Initialized() {
		return ErrUninitialized
	}
	if _, ok := m.finder.FindSourceByID(sourceID); !ok {
		return fmt.Errorf("%w: %d", ErrSourceNotFound, sourceID)
	}

	prev, cleared := m.slots.Clear(sourceID)
	if !cleared {
		return nil
	}
	prev.source.ClearFrameCallback()
	m.collector.IncProcessorUnset()
	m.logger.Info("processor unset", map[string]any{"source_id": sourceID, "processor_id": prev.ID})
	return nil
}
