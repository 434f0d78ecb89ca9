// Package runtime owns the secondary goja runtime that runs frame processors.
//
// A Manager creates the secondary runtime on its scheduler goroutine,
// installs setProcessor and unsetProcessor on the primary runtime, keeps one
// processor slot per source, and delivers frames from capture goroutines to
// the secondary goroutine.
//
// Goroutine model:
//   - primary goroutine: bridge globals, SetProcessor, UnsetProcessor
//   - capture goroutines: frame delivery (slot lookup + Schedule, lock free)
//   - secondary goroutine (the Scheduler): every touch of the secondary
//     runtime, processor materialization and invocation, plugin dispatch
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/metrics"
	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/scheduler"
	"github.com/pithecene-io/framewire/slot"
	"github.com/pithecene-io/framewire/types"
)

// Marker globals defined on the secondary runtime.
const (
	MarkerGlobal = "_FRAME_PROCESSOR"
	LabelGlobal  = "_LABEL"
	Label        = "FRAME_PROCESSOR"
)

// Scheduler marshals work onto the secondary runtime's goroutine.
// *scheduler.Loop implements it.
type Scheduler interface {
	// Schedule queues a task without blocking.
	Schedule(task scheduler.Task) error
	// RunSync runs fn on the scheduler goroutine and waits for it.
	RunSync(ctx context.Context, fn func() error) error
	// ReportError receives uncaught processor failures.
	ReportError(err error)
}

// Config configures a Manager.
type Config struct {
	// Finder resolves source ids. Required.
	Finder types.SourceFinder
	// Logger is the base logger (default: no-op).
	Logger *log.Logger
	// Collector records counters. If nil, nothing is recorded.
	Collector *metrics.Collector
	// InvocationTimeout interrupts a processor that runs longer.
	// Zero disables the limit.
	InvocationTimeout time.Duration
}

// session is the live state created by Initialize.
type session struct {
	rt      *goja.Runtime
	sched   Scheduler
	primary types.CallInvoker
	errs    *errorHandler
	started time.Time
}

// Manager owns the secondary runtime and the processor slots.
type Manager struct {
	finder    types.SourceFinder
	logger    *log.Logger
	collector *metrics.Collector
	timeout   time.Duration

	plugins *plugin.Registry
	slots   slot.Table[int, *Processor]

	initMu sync.Mutex
	live   atomic.Pointer[session]
}

// NewManager creates an uninitialized manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Finder == nil {
		return nil, errors.New("source finder is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.Named("runtime")
	return &Manager{
		finder:    cfg.Finder,
		logger:    logger,
		collector: cfg.Collector,
		timeout:   cfg.InvocationTimeout,
		plugins:   plugin.NewRegistry(logger.Named("plugin"), cfg.Collector),
	}, nil
}

// Initialize creates and decorates the secondary runtime on sched's
// goroutine. primary is handed to plugins that need the primary runtime.
func (m *Manager) Initialize(ctx context.Context, primary types.CallInvoker, sched Scheduler) error {
	if sched == nil {
		return errors.New("scheduler is required")
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.live.Load() != nil {
		return ErrAlreadyInitialized
	}

	s := &session{
		sched:   sched,
		primary: primary,
		errs:    &errorHandler{sched: sched, logger: m.logger, collector: m.collector},
		started: time.Now(),
	}
	err := sched.RunSync(ctx, func() error {
		rt := goja.New()
		if err := m.decorate(rt, s.started); err != nil {
			return err
		}
		if err := m.plugins.InstallAll(rt); err != nil {
			return err
		}
		s.rt = rt
		return nil
	})
	if err != nil {
		return fmt.Errorf("initialize secondary runtime: %w", err)
	}

	m.live.Store(s)
	m.logger.Info("secondary runtime initialized", map[string]any{"plugins": m.plugins.Len()})
	return nil
}

// Initialized reports whether the secondary runtime is live.
func (m *Manager) Initialized() bool {
	return m.live.Load() != nil
}

// decorate installs the marker globals, console and performance.now.
func (m *Manager) decorate(rt *goja.Runtime, started time.Time) error {
	if err := rt.Set(MarkerGlobal, true); err != nil {
		return err
	}
	if err := rt.Set(LabelGlobal, Label); err != nil {
		return err
	}
	if err := InstallConsole(rt, m.logger.Named("script")); err != nil {
		return err
	}
	performance := rt.NewObject()
	if err := performance.Set("now", func() float64 {
		return float64(time.Since(started).Microseconds()) / 1000
	}); err != nil {
		return err
	}
	return rt.Set("performance", performance)
}

// RegisterPlugin installs p as a global on the secondary runtime.
// Fails with ErrUninitialized before Initialize. Must not be called from
// the secondary goroutine.
func (m *Manager) RegisterPlugin(ctx context.Context, p plugin.Plugin) error {
	s := m.live.Load()
	if s == nil {
		return ErrUninitialized
	}
	if err := m.plugins.Add(p); err != nil {
		return err
	}
	if aware, ok := p.(plugin.PrimaryAware); ok {
		aware.SetPrimaryInvoker(s.primary)
	}
	if err := s.sched.RunSync(ctx, func() error {
		return m.plugins.Install(s.rt, p.Name())
	}); err != nil {
		return err
	}
	m.logger.Info("plugin registered", map[string]any{"plugin": p.Name(), "global": plugin.GlobalName(p.Name())})
	return nil
}

// Plugins returns registered plugin names in sorted order.
func (m *Manager) Plugins() []string {
	return m.plugins.Names()
}

// Processor returns the processor currently set for sourceID.
func (m *Manager) Processor(sourceID int) (ProcessorInfo, bool) {
	p, ok := m.slots.Get(sourceID)
	if !ok {
		return ProcessorInfo{}, false
	}
	return p.Info(), true
}

// Processors lists every set processor ordered by source id.
func (m *Manager) Processors() []ProcessorInfo {
	ids := m.slots.Keys()
	out := make([]ProcessorInfo, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.slots.Get(id); ok {
			out = append(out, p.Info())
		}
	}
	return out
}

// Close clears every slot, detaches source callbacks and drops the
// secondary runtime. Tasks already queued still run to completion with the
// processor they captured. The manager may be initialized again.
func (m *Manager) Close() {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	for sourceID, p := range m.slots.Reset() {
		p.source.ClearFrameCallback()
		m.logger.Debug("processor cleared on close", map[string]any{"source_id": sourceID, "processor_id": p.ID})
	}
	if m.live.Swap(nil) != nil {
		m.logger.Info("secondary runtime closed", nil)
	}
}

// errorHandler forwards uncaught processor failures to the scheduler.
type errorHandler struct {
	sched     Scheduler
	logger    *log.Logger
	collector *metrics.Collector
}

func (e *errorHandler) report(p *Processor, err error) {
	e.collector.IncInvocationError()
	cbErr := newCallbackError(p, err)
	e.logger.Debug("processor failed", map[string]any{
		"source_id":    p.SourceID,
		"processor_id": p.ID,
		"error":        err.Error(),
	})
	e.sched.ReportError(cbErr)
}
