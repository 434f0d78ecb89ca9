package runtime

import (
	"time"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/shareable"
	"github.com/pithecene-io/framewire/types"
)

// Processor is the content of one source's slot: a captured function and
// the source it serves. Immutable once stored, apart from the
// materialization cache which only the secondary goroutine touches.
type Processor struct {
	ID       string
	SourceID int
	SetAt    time.Time

	source  types.Source
	worklet *shareable.Shareable

	// secondary goroutine only
	fn        goja.Callable
	fnRuntime *goja.Runtime
}

// ProcessorInfo describes a set processor.
type ProcessorInfo struct {
	ID       string    `json:"id" yaml:"id"`
	SourceID int       `json:"source_id" yaml:"source_id"`
	SetAt    time.Time `json:"set_at" yaml:"set_at"`
	Bindings []string  `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// Info returns a description of p.
func (p *Processor) Info() ProcessorInfo {
	return ProcessorInfo{
		ID:       p.ID,
		SourceID: p.SourceID,
		SetAt:    p.SetAt,
		Bindings: p.worklet.Bindings(),
	}
}

// callable materializes the processor in rt on first use and caches it.
// Must run on rt's goroutine.
func (p *Processor) callable(rt *goja.Runtime) (goja.Callable, error) {
	if p.fn != nil && p.fnRuntime == rt {
		return p.fn, nil
	}
	fn, err := p.worklet.Callable(rt)
	if err != nil {
		return nil, err
	}
	p.fn, p.fnRuntime = fn, rt
	return fn, nil
}
