// Package scheduler runs tasks on one dedicated goroutine per runtime.
//
// A goja runtime may only be touched by the goroutine that owns it. A Loop
// is that owner: every task scheduled on it runs sequentially on the loop
// goroutine, in FIFO order.
//
// Two queues feed the loop. The frame queue is bounded and applies the
// configured DropPolicy when full. The control queue (Invoke, RunSync) is
// unbounded and drained first; it carries setup work that must not be
// dropped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/metrics"
)

// DefaultQueueSize is the frame queue bound when Config.QueueSize is unset.
const DefaultQueueSize = 4

// DropPolicy decides what happens when the frame queue is full.
type DropPolicy string

const (
	// DropOldest evicts the oldest queued task and calls its Discard.
	DropOldest DropPolicy = "drop_oldest"
	// DropNewest rejects the incoming task with ErrQueueFull.
	DropNewest DropPolicy = "drop_newest"
)

// ParseDropPolicy parses a policy name. The empty string selects DropOldest.
func ParseDropPolicy(name string) (DropPolicy, error) {
	switch DropPolicy(name) {
	case "", DropOldest:
		return DropOldest, nil
	case DropNewest:
		return DropNewest, nil
	default:
		return "", fmt.Errorf("unknown drop policy %q (want %s or %s)", name, DropOldest, DropNewest)
	}
}

var (
	// ErrQueueFull is returned by Schedule under DropNewest when the queue is full.
	ErrQueueFull = errors.New("scheduler queue full")
	// ErrStopped is returned when the loop has stopped.
	ErrStopped = errors.New("scheduler stopped")
	// ErrNotStarted is returned when the loop has not been started.
	ErrNotStarted = errors.New("scheduler not started")
)

// Task is one unit of work for the loop.
type Task struct {
	// Run executes on the loop goroutine.
	Run func()
	// Discard, if set, is called instead of Run when the task is evicted
	// or the loop stops before running it. It may run on any goroutine.
	Discard func()
}

// Config configures a Loop.
type Config struct {
	// Name identifies the loop in logs.
	Name string
	// QueueSize bounds the frame queue (default DefaultQueueSize).
	QueueSize int
	// DropPolicy applies when the frame queue is full (default DropOldest).
	DropPolicy DropPolicy
	Logger     *log.Logger
	Collector  *metrics.Collector
	// OnError receives errors passed to ReportError and recovered task
	// panics. When nil they are logged.
	OnError func(err error)
}

// Stats is a point-in-time view of loop counters.
type Stats struct {
	Scheduled int64 `json:"scheduled" yaml:"scheduled"`
	Executed  int64 `json:"executed" yaml:"executed"`
	Evicted   int64 `json:"evicted" yaml:"evicted"`
	Rejected  int64 `json:"rejected" yaml:"rejected"`
	Discarded int64 `json:"discarded" yaml:"discarded"`
	Panics    int64 `json:"panics" yaml:"panics"`
	Reported  int64 `json:"reported" yaml:"reported"`
	Queued    int   `json:"queued" yaml:"queued"`
}

// Loop owns one goroutine and runs tasks on it.
type Loop struct {
	name      string
	size      int
	policy    DropPolicy
	logger    *log.Logger
	collector *metrics.Collector
	onError   func(error)

	mu      sync.Mutex
	frames  []Task
	control []Task
	started bool
	stopped bool
	running bool
	stats   Stats

	notify   chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop. Call Start before scheduling.
func New(cfg Config) (*Loop, error) {
	policy, err := ParseDropPolicy(string(cfg.DropPolicy))
	if err != nil {
		return nil, err
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	name := cfg.Name
	if name == "" {
		name = "loop"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loop{
		name:      name,
		size:      size,
		policy:    policy,
		logger:    logger.With(map[string]any{"loop": name}),
		collector: cfg.Collector,
		onError:   cfg.OnError,
		notify:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Start launches the loop goroutine. The loop exits when ctx is canceled
// or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	if l.started {
		l.mu.Unlock()
		return errors.New("scheduler already started")
	}
	l.started = true
	l.mu.Unlock()

	go l.run(ctx)
	return nil
}

// Schedule queues a frame task without blocking.
//
// When the queue is full, DropOldest evicts the oldest task (calling its
// Discard) and accepts t; DropNewest returns ErrQueueFull and leaves t
// untouched, so the caller still owns whatever t refers to.
func (l *Loop) Schedule(t Task) error {
	if t.Run == nil {
		return errors.New("task has no Run function")
	}

	l.mu.Lock()
	if err := l.acceptingLocked(); err != nil {
		l.mu.Unlock()
		return err
	}

	var evicted *Task
	if len(l.frames) >= l.size {
		if l.policy == DropNewest {
			l.stats.Rejected++
			l.mu.Unlock()
			return ErrQueueFull
		}
		oldest := l.frames[0]
		l.frames = l.frames[1:]
		l.stats.Evicted++
		evicted = &oldest
	}
	l.frames = append(l.frames, t)
	l.stats.Scheduled++
	l.mu.Unlock()

	l.wake()
	if evicted != nil && evicted.Discard != nil {
		evicted.Discard()
	}
	return nil
}

// Invoke queues fn on the control queue. It never drops.
func (l *Loop) Invoke(fn func()) error {
	return l.invoke(Task{Run: fn})
}

func (l *Loop) invoke(t Task) error {
	if t.Run == nil {
		return errors.New("task has no Run function")
	}
	l.mu.Lock()
	if err := l.acceptingLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.control = append(l.control, t)
	l.stats.Scheduled++
	l.mu.Unlock()
	l.wake()
	return nil
}

// RunSync runs fn on the loop goroutine and waits for its result.
// Must not be called from a task running on the same loop.
func (l *Loop) RunSync(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result := make(chan error, 1)
	err := l.invoke(Task{
		Run:     func() { result <- fn() },
		Discard: func() { result <- ErrStopped },
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportError forwards err to OnError, or logs it. Safe for concurrent use.
func (l *Loop) ReportError(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	l.stats.Reported++
	l.mu.Unlock()
	l.collector.IncReportedError()

	if l.onError != nil {
		l.onError(err)
		return
	}
	l.logger.Error("task error", map[string]any{"error": err.Error()})
}

// WaitUntilIdle blocks until no task is running and both queues are empty.
func (l *Loop) WaitUntilIdle(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.isIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop ends the loop after the running task, if any, and discards every
// queued task. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		started := l.started
		l.mu.Unlock()

		close(l.stopCh)
		if !started {
			close(l.done)
		}
		l.discardAll()
	})
}

// Wait blocks until the loop goroutine exits.
func (l *Loop) Wait() {
	<-l.done
}

// Stats returns a snapshot of loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Queued = len(l.frames) + len(l.control)
	return s
}

func (l *Loop) acceptingLocked() error {
	if l.stopped {
		return ErrStopped
	}
	if !l.started {
		return ErrNotStarted
	}
	return nil
}

func (l *Loop) wake() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		t, ok := l.next()
		if ok {
			l.execute(t)
			continue
		}
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.stopCh:
			return
		case <-l.notify:
		}
	}
}

// next pops the next task, control queue first, and marks the loop busy.
func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return Task{}, false
	}
	var t Task
	switch {
	case len(l.control) > 0:
		t = l.control[0]
		l.control = l.control[1:]
	case len(l.frames) > 0:
		t = l.frames[0]
		l.frames = l.frames[1:]
	default:
		return Task{}, false
	}
	l.running = true
	return t, true
}

func (l *Loop) execute(t Task) {
	defer func() {
		r := recover()
		l.mu.Lock()
		l.running = false
		l.stats.Executed++
		if r != nil {
			l.stats.Panics++
		}
		l.mu.Unlock()
		if r != nil {
			l.ReportError(fmt.Errorf("%s: task panic: %v", l.name, r))
		}
	}()
	t.Run()
}

func (l *Loop) discardAll() {
	l.mu.Lock()
	pending := append(l.control, l.frames...)
	l.control = nil
	l.frames = nil
	l.stats.Discarded += int64(len(pending))
	l.mu.Unlock()

	for _, t := range pending {
		if t.Discard != nil {
			t.Discard()
		}
	}
}

func (l *Loop) isIdle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started || l.stopped {
		return true
	}
	return !l.running && len(l.frames) == 0 && len(l.control) == 0
}
