package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/frame"
	"github.com/pithecene-io/framewire/scheduler"
	"github.com/pithecene-io/framewire/types"
)

// deliver hands one frame to the secondary goroutine. Runs on the source's
// delivery goroutine and never blocks: the slot read is lock free and
// Schedule only queues.
//
// The processor is read here, at hand-off. A task already queued keeps the
// processor it captured even if the slot changes before it runs.
func (m *Manager) deliver(sourceID int, nf types.NativeFrame) {
	p, ok := m.slots.Get(sourceID)
	s := m.live.Load()
	if !ok || s == nil {
		nf.Release()
		m.collector.IncFrameSkipped()
		return
	}

	err := s.sched.Schedule(scheduler.Task{
		Run: func() { m.invoke(s, p, nf) },
		Discard: func() {
			nf.Release()
			m.collector.IncFrameDropped()
		},
	})
	if err != nil {
		nf.Release()
		m.collector.IncFrameDropped()
		m.logger.Debug("frame dropped", map[string]any{"source_id": sourceID, "error": err.Error()})
		return
	}
	m.collector.IncFrameDelivered()
}

// invoke runs p against one frame. Runs on the secondary goroutine. The
// frame handle is closed, releasing the native frame, on every path out.
func (m *Manager) invoke(s *session, p *Processor, nf types.NativeFrame) {
	h := frame.Wrap(s.rt, nf)
	defer h.Close()
	m.collector.IncInvocation()

	fn, err := p.callable(s.rt)
	if err != nil {
		s.errs.report(p, fmt.Errorf("materialize processor: %w", err))
		return
	}

	if m.timeout > 0 {
		// The timer may fire after fn returns; done keeps a late interrupt
		// from landing on the next task.
		var mu sync.Mutex
		done := false
		timer := time.AfterFunc(m.timeout, func() {
			mu.Lock()
			defer mu.Unlock()
			if !done {
				s.rt.Interrupt(fmt.Sprintf("processor exceeded %s", m.timeout))
			}
		})
		defer func() {
			mu.Lock()
			done = true
			mu.Unlock()
			timer.Stop()
			s.rt.ClearInterrupt()
		}()
	}

	if _, err := fn(goja.Undefined(), h.Object()); err != nil {
		s.errs.report(p, err)
	}
}
