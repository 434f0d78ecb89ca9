// Package metrics provides counters for the frame processing core.
//
// The Collector is a leaf package with no internal dependencies. The runtime
// manager, scheduler, and plugin dispatch record into one shared Collector;
// the CLI reads it through Snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Processor lifecycle
	ProcessorsSet   int64 `json:"processors_set" yaml:"processors_set"`
	ProcessorsUnset int64 `json:"processors_unset" yaml:"processors_unset"`

	// Frame delivery
	FramesDelivered int64 `json:"frames_delivered" yaml:"frames_delivered"`
	FramesSkipped   int64 `json:"frames_skipped" yaml:"frames_skipped"`
	FramesDropped   int64 `json:"frames_dropped" yaml:"frames_dropped"`

	// Secondary runtime execution
	Invocations      int64 `json:"invocations" yaml:"invocations"`
	InvocationErrors int64 `json:"invocation_errors" yaml:"invocation_errors"`
	ReportedErrors   int64 `json:"reported_errors" yaml:"reported_errors"`

	// Plugin dispatch
	PluginCalls  int64            `json:"plugin_calls" yaml:"plugin_calls"`
	PluginErrors int64            `json:"plugin_errors" yaml:"plugin_errors"`
	CallsByName  map[string]int64 `json:"calls_by_plugin" yaml:"calls_by_plugin"`
}

// Collector accumulates counters for the lifetime of a runtime manager.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	processorsSet   int64
	processorsUnset int64

	framesDelivered int64
	framesSkipped   int64
	framesDropped   int64

	invocations      int64
	invocationErrors int64
	reportedErrors   int64

	pluginCalls  int64
	pluginErrors int64
	callsByName  map[string]int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		callsByName: make(map[string]int64),
	}
}

// --- Processor lifecycle ---

// IncProcessorSet records a setProcessor call that installed a processor.
func (c *Collector) IncProcessorSet() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.processorsSet++
	c.mu.Unlock()
}

// IncProcessorUnset records an unsetProcessor call that cleared a slot.
func (c *Collector) IncProcessorUnset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.processorsUnset++
	c.mu.Unlock()
}

// --- Frame delivery ---

// IncFrameDelivered records a frame handed off to the secondary runtime.
func (c *Collector) IncFrameDelivered() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDelivered++
	c.mu.Unlock()
}

// IncFrameSkipped records a frame released because its slot was empty.
func (c *Collector) IncFrameSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesSkipped++
	c.mu.Unlock()
}

// IncFrameDropped records a frame released by the scheduler's drop policy.
func (c *Collector) IncFrameDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDropped++
	c.mu.Unlock()
}

// --- Secondary runtime ---

// IncInvocation records one processor invocation.
func (c *Collector) IncInvocation() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.invocations++
	c.mu.Unlock()
}

// IncInvocationError records an invocation that ended with an uncaught error.
func (c *Collector) IncInvocationError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.invocationErrors++
	c.mu.Unlock()
}

// IncReportedError records an error forwarded to scheduler error reporting.
func (c *Collector) IncReportedError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reportedErrors++
	c.mu.Unlock()
}

// --- Plugin dispatch ---

// IncPluginCall records a plugin call by name.
func (c *Collector) IncPluginCall(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pluginCalls++
	c.callsByName[name]++
	c.mu.Unlock()
}

// IncPluginError records a plugin call that failed (conversion or native error).
func (c *Collector) IncPluginError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pluginErrors++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byName := make(map[string]int64, len(c.callsByName))
	for k, v := range c.callsByName {
		byName[k] = v
	}

	return Snapshot{
		ProcessorsSet:   c.processorsSet,
		ProcessorsUnset: c.processorsUnset,

		FramesDelivered: c.framesDelivered,
		FramesSkipped:   c.framesSkipped,
		FramesDropped:   c.framesDropped,

		Invocations:      c.invocations,
		InvocationErrors: c.invocationErrors,
		ReportedErrors:   c.reportedErrors,

		PluginCalls:  c.pluginCalls,
		PluginErrors: c.pluginErrors,
		CallsByName:  byName,
	}
}
