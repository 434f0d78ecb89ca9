package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/framewire/capture"
	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/types"
)

type recordingPlugin struct {
	mu     sync.Mutex
	widths []int
	args   [][]any
	closed int
}

func (p *recordingPlugin) Name() string { return "record" }

func (p *recordingPlugin) Callback(f types.NativeFrame, args []any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.widths = append(p.widths, f.Width())
	p.args = append(p.args, args)
	return true, nil
}

func (p *recordingPlugin) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

func (p *recordingPlugin) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.widths)
}

func testSources() []capture.CameraConfig {
	return []capture.CameraConfig{
		{ID: 1, FPS: 200, Width: 4, Height: 2, Buffers: 2},
		{ID: 2, FPS: 200, Width: 8, Height: 2, Buffers: 2},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 3s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Sources: testSources()}); err == nil {
		t.Error("expected error for missing script")
	}
	if _, err := New(Options{Script: "1"}); err == nil {
		t.Error("expected error for missing sources")
	}
	dup := []capture.CameraConfig{{ID: 1}, {ID: 1}}
	if _, err := New(Options{Script: "1", Sources: dup}); !errors.Is(err, capture.ErrDuplicateCamera) {
		t.Errorf("duplicate sources = %v, want ErrDuplicateCamera", err)
	}
}

func TestHost_ProcessorReceivesFrames(t *testing.T) {
	rec := &recordingPlugin{}
	h, err := New(Options{
		Script:  `setProcessor(1, function(frame) { __record(frame, frame.width, "tag") })`,
		Sources: testSources(),
		Plugins: []plugin.Plugin{rec},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return rec.calls() >= 3 })

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rec.mu.Lock()
	for i, w := range rec.widths {
		if w != 4 {
			t.Errorf("call %d width = %d, want 4 (source 1 only)", i, w)
		}
	}
	if got := rec.args[0]; len(got) != 2 || got[0] != int64(4) || got[1] != "tag" {
		t.Errorf("args = %#v, want [4 tag]", got)
	}
	closed := rec.closed
	rec.mu.Unlock()
	if closed != 1 {
		t.Errorf("plugin closed %d times, want 1", closed)
	}

	// Every buffer returns to its pool once the run is down.
	for _, s := range h.Cameras().Stats() {
		if s.Pool.InFlight != 0 {
			t.Errorf("source %d has %d buffers in flight", s.ID, s.Pool.InFlight)
		}
	}
}

func TestHost_CloseIsIdempotent(t *testing.T) {
	rec := &recordingPlugin{}
	h, err := New(Options{Script: "var x = 1", Sources: testSources(), Plugins: []plugin.Plugin{rec}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_ = h.Close()
	_ = h.Close()
	if rec.closed != 1 {
		t.Errorf("plugin closed %d times, want 1", rec.closed)
	}
}

func TestHost_ScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"syntax", "setProcessor(1, function( {"},
		{"throw", `throw new Error("boom")`},
		{"bad source", `setProcessor(99, function(f) {})`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingPlugin{}
			h, err := New(Options{Script: tt.script, Sources: testSources(), Plugins: []plugin.Plugin{rec}})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			err = h.Start(context.Background())
			if !errors.Is(err, ErrScript) {
				t.Fatalf("Start = %v, want ErrScript", err)
			}
			if rec.closed != 1 {
				t.Errorf("plugin closed %d times after failed start, want 1", rec.closed)
			}
		})
	}
}

func TestHost_Summary(t *testing.T) {
	h, err := New(Options{
		Script:  `setProcessor(2, function(f) {}); setProcessor(1, function(f) {})`,
		Sources: testSources(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return h.Collector().Snapshot().Invocations >= 2 })
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s := h.Summary()
	if len(s.Sources) != 2 || s.Sources[0].ID != 1 {
		t.Errorf("Sources = %+v", s.Sources)
	}
	if s.Metrics == nil || s.Metrics.ProcessorsSet != 2 {
		t.Errorf("Metrics = %+v, want 2 processors set", s.Metrics)
	}
	// Close detaches every processor.
	if len(s.Processors) != 0 {
		t.Errorf("Processors = %+v, want none after close", s.Processors)
	}
	if s.Scheduler == nil || s.Scheduler.Executed == 0 {
		t.Errorf("Scheduler = %+v", s.Scheduler)
	}
}
