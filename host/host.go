// Package host wires a complete frame processing run: simulated cameras,
// the primary and secondary script runtimes with their scheduler loops,
// the runtime manager and the configured plugins.
//
// Run flow:
//  1. Start both loops
//  2. Initialize the secondary runtime and register plugins
//  3. Create the primary runtime, install the bridge globals, run the script
//  4. Drive the cameras until ctx is done
//  5. Detach processors, stop the loops, close plugins
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/capture"
	"github.com/pithecene-io/framewire/iox"
	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/metrics"
	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/runtime"
	"github.com/pithecene-io/framewire/scheduler"
)

// Loop names.
const (
	PrimaryLoop   = "primary"
	SecondaryLoop = "frame_processor"
)

// ErrScript wraps failures of the primary script itself.
var ErrScript = errors.New("primary script failed")

// Options configures a Host.
type Options struct {
	// ScriptName labels the primary script in stack traces.
	ScriptName string
	// Script is the primary script source. Required.
	Script string
	// Sources are the simulated cameras. At least one is required.
	Sources []capture.CameraConfig
	// QueueSize bounds the secondary frame queue.
	QueueSize int
	// DropPolicy applies when the secondary queue is full.
	DropPolicy scheduler.DropPolicy
	// InvocationTimeout interrupts long processors. Zero disables it.
	InvocationTimeout time.Duration
	// Plugins are registered on the secondary runtime. Plugins that
	// implement io.Closer are closed on shutdown.
	Plugins []plugin.Plugin
	// Logger is the base logger (default: no-op).
	Logger *log.Logger
	// Collector records counters (default: a fresh collector).
	Collector *metrics.Collector
}

// Host owns every component of one run.
type Host struct {
	opts      Options
	logger    *log.Logger
	collector *metrics.Collector

	cameras   *capture.Registry
	primary   *scheduler.Loop
	secondary *scheduler.Loop
	manager   *runtime.Manager

	primaryRT *goja.Runtime
	started   time.Time

	camCancel context.CancelFunc
	camDone   chan struct{}
	closeOnce sync.Once
}

// New builds every component without starting anything.
func New(opts Options) (*Host, error) {
	if opts.Script == "" {
		return nil, errors.New("primary script is required")
	}
	if len(opts.Sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if opts.ScriptName == "" {
		opts.ScriptName = "main.js"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}

	cameras := capture.NewRegistry()
	for _, sc := range opts.Sources {
		sc.Logger = logger
		if err := cameras.Add(capture.NewCamera(sc)); err != nil {
			return nil, err
		}
	}

	cbLogger := logger.Named("frame_processor")
	secondary, err := scheduler.New(scheduler.Config{
		Name:       SecondaryLoop,
		QueueSize:  opts.QueueSize,
		DropPolicy: opts.DropPolicy,
		Logger:     logger.Named("scheduler"),
		Collector:  collector,
		OnError:    func(err error) { logCallbackError(cbLogger, err) },
	})
	if err != nil {
		return nil, fmt.Errorf("secondary loop: %w", err)
	}
	primary, err := scheduler.New(scheduler.Config{
		Name:      PrimaryLoop,
		Logger:    logger.Named("scheduler"),
		Collector: collector,
	})
	if err != nil {
		return nil, fmt.Errorf("primary loop: %w", err)
	}

	manager, err := runtime.NewManager(runtime.Config{
		Finder:            cameras,
		Logger:            logger,
		Collector:         collector,
		InvocationTimeout: opts.InvocationTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Host{
		opts:      opts,
		logger:    logger.Named("host"),
		collector: collector,
		cameras:   cameras,
		primary:   primary,
		secondary: secondary,
		manager:   manager,
	}, nil
}

func logCallbackError(logger *log.Logger, err error) {
	fields := map[string]any{"error": err.Error()}
	var cbErr *runtime.CallbackError
	if errors.As(err, &cbErr) {
		fields["source_id"] = cbErr.SourceID
		fields["processor_id"] = cbErr.ProcessorID
		if cbErr.Stack != "" {
			fields["stack"] = cbErr.Stack
		}
	}
	logger.Error("uncaught processor error", fields)
}

// Start brings up both runtimes, runs the primary script and starts the
// cameras. A script failure wraps ErrScript. On error everything started
// so far is shut down.
func (h *Host) Start(ctx context.Context) (err error) {
	h.started = time.Now()
	defer func() {
		if err != nil {
			h.Close()
		}
	}()

	if err := h.secondary.Start(ctx); err != nil {
		return err
	}
	if err := h.primary.Start(ctx); err != nil {
		return err
	}

	if err := h.manager.Initialize(ctx, h.primary, h.secondary); err != nil {
		return err
	}
	for _, p := range h.opts.Plugins {
		if err := h.manager.RegisterPlugin(ctx, p); err != nil {
			return fmt.Errorf("register plugin %s: %w", p.Name(), err)
		}
	}

	if err := h.runScript(ctx); err != nil {
		return err
	}

	camCtx, cancel := context.WithCancel(ctx)
	h.camCancel = cancel
	h.camDone = make(chan struct{})
	go func() {
		defer close(h.camDone)
		h.cameras.Run(camCtx)
	}()

	h.logger.Info("run started", map[string]any{
		"sources":    len(h.opts.Sources),
		"plugins":    h.manager.Plugins(),
		"processors": len(h.manager.Processors()),
	})
	return nil
}

// runScript creates the primary runtime and evaluates the script on the
// primary loop.
func (h *Host) runScript(ctx context.Context) error {
	prog, err := goja.Compile(h.opts.ScriptName, h.opts.Script, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	return h.primary.RunSync(ctx, func() error {
		rt := goja.New()
		if err := runtime.InstallConsole(rt, h.logger.Named("primary")); err != nil {
			return err
		}
		if err := h.manager.InstallBridgeFunctions(rt); err != nil {
			return err
		}
		if _, err := rt.RunProgram(prog); err != nil {
			return fmt.Errorf("%w: %v", ErrScript, err)
		}
		h.primaryRT = rt
		return nil
	})
}

// Run starts the host and blocks until ctx is done, then closes it.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return h.Close()
}

// Close stops the cameras, detaches every processor, stops both loops and
// closes plugins. Safe to call more than once.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.camCancel != nil {
			h.camCancel()
			<-h.camDone
		}
		h.manager.Close()
		h.secondary.Stop()
		h.primary.Stop()
		h.secondary.Wait()
		h.primary.Wait()

		closers := make([]io.Closer, 0, len(h.opts.Plugins))
		for _, p := range h.opts.Plugins {
			closers = append(closers, iox.AsCloser(p))
		}
		err = iox.CloseAll(closers...)
		h.logger.Info("run stopped", map[string]any{"duration_ms": time.Since(h.started).Milliseconds()})
	})
	return err
}

// Manager returns the runtime manager.
func (h *Host) Manager() *runtime.Manager { return h.manager }

// Cameras returns the source registry.
func (h *Host) Cameras() *capture.Registry { return h.cameras }

// Collector returns the metrics collector.
func (h *Host) Collector() *metrics.Collector { return h.collector }

// SecondaryStats returns the frame processor loop counters.
func (h *Host) SecondaryStats() scheduler.Stats { return h.secondary.Stats() }

// Elapsed is the time since Start.
func (h *Host) Elapsed() time.Duration {
	if h.started.IsZero() {
		return 0
	}
	return time.Since(h.started)
}

// WaitUntilIdle waits for the secondary loop to drain.
func (h *Host) WaitUntilIdle(ctx context.Context) error {
	return h.secondary.WaitUntilIdle(ctx)
}

// Summary is the final run report plus per-source capture counters.
type Summary struct {
	runtime.Report `yaml:",inline"`
	Sources        []capture.CameraStats `json:"sources" yaml:"sources"`
}

// Summary snapshots the run.
func (h *Host) Summary() *Summary {
	stats := h.secondary.Stats()
	return &Summary{
		Report:  *runtime.BuildReport(h.manager, h.collector.Snapshot(), &stats, h.Elapsed()),
		Sources: h.cameras.Stats(),
	}
}
