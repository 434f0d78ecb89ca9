package runtime

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Ordering and lookup errors returned by Manager operations and thrown by
// the bridge globals. Callers match them with errors.Is.
var (
	// ErrUninitialized is returned when an operation needs the secondary
	// runtime before Initialize.
	ErrUninitialized = errors.New("frame processor runtime not yet initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("frame processor runtime already initialized")
	// ErrSourceNotFound is returned when the source finder has no such id.
	ErrSourceNotFound = errors.New("source not found")
	// ErrInvalidArgument is the sentinel behind every ArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ArgumentError names the parameter that failed a bridge function's
// argument contract. Thrown into scripts as a TypeError.
type ArgumentError struct {
	// Func is the bridge function, e.g. "setProcessor".
	Func string
	// Param is the offending parameter, e.g. "sourceId".
	Param string
	// Want describes the required shape.
	Want string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: parameter %q must be %s", e.Func, e.Param, e.Want)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// CallbackError wraps an uncaught failure raised while running a processor.
// It is delivered to Scheduler.ReportError, never to the frame source.
type CallbackError struct {
	SourceID    int
	ProcessorID string
	// Stack is the script stack trace when the failure was a script exception.
	Stack string
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("processor %s (source %d): %v", e.ProcessorID, e.SourceID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func newCallbackError(p *Processor, err error) *CallbackError {
	cbErr := &CallbackError{SourceID: p.SourceID, ProcessorID: p.ID, Err: err}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		cbErr.Stack = ex.String()
	}
	return cbErr
}

// scriptError converts a Manager error into the value thrown at the script
// call site: argument errors become TypeErrors, everything else an Error.
func scriptError(rt *goja.Runtime, err error) *goja.Object {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return rt.NewTypeError("%s", argErr.Error())
	}
	return rt.NewGoError(err)
}
