package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/framewire/iox"
	"github.com/pithecene-io/framewire/plugin"
)

type stubFrame struct{}

func (stubFrame) Width() int           { return 1920 }
func (stubFrame) Height() int          { return 1080 }
func (stubFrame) BytesPerRow() int     { return 7680 }
func (stubFrame) PlanesCount() int     { return 1 }
func (stubFrame) Format() string       { return "bgra" }
func (stubFrame) Timestamp() time.Time { return time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC) }
func (stubFrame) Data() []byte         { return nil }
func (stubFrame) Release()             {}

func newPlugin(t *testing.T, cfg Config) *Plugin {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = 10 * time.Millisecond
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(p))
	return p
}

func TestCallback_Success(t *testing.T) {
	var received plugin.FrameEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	p := newPlugin(t, Config{URL: ts.URL})
	out, err := p.Callback(stubFrame{}, []any{map[string]any{"label": "person"}})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if out != http.StatusAccepted {
		t.Errorf("status = %v, want 202", out)
	}
	if received.Plugin != Name || received.Width != 1920 || received.Format != "bgra" {
		t.Errorf("event = %+v", received)
	}
	if payload, ok := received.Payload.(map[string]any); !ok || payload["label"] != "person" {
		t.Errorf("payload = %v", received.Payload)
	}
}

func TestCallback_NoPayload(t *testing.T) {
	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
	}))
	defer ts.Close()

	p := newPlugin(t, Config{URL: ts.URL})
	if _, err := p.Callback(stubFrame{}, nil); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if v, exists := raw["payload"]; !exists || v != nil {
		t.Errorf("payload = %v (exists %v), want null", v, exists)
	}
}

func TestNotify_CustomHeaders(t *testing.T) {
	var authHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newPlugin(t, Config{
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})
	if _, err := p.Notify(t.Context(), &plugin.FrameEvent{}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if authHeader != "Bearer test-token" {
		t.Errorf("expected Bearer test-token, got %s", authHeader)
	}
}

func TestNotify_RetriesOnFailure(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newPlugin(t, Config{URL: ts.URL, Retries: 3})
	if _, err := p.Notify(t.Context(), &plugin.FrameEvent{}); err != nil {
		t.Fatalf("notify should succeed after retries: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestNotify_StatusClasses(t *testing.T) {
	tests := []struct {
		code     int
		wantErr  bool
		attempts int32
	}{
		{200, false, 1},
		{204, false, 1},
		{400, true, 1},
		{404, true, 1},
		{500, true, 3},
		{503, true, 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.code)
			}))
			defer ts.Close()

			p := newPlugin(t, Config{URL: ts.URL, Retries: 2})
			_, err := p.Notify(t.Context(), &plugin.FrameEvent{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.attempts {
				t.Errorf("attempts = %d, want %d", got, tt.attempts)
			}
		})
	}
}

func TestNotify_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	p := newPlugin(t, Config{URL: ts.URL, Timeout: 10 * time.Second})
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if _, err := p.Notify(ctx, &plugin.FrameEvent{}); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
	p, err := New(Config{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.config.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, p.config.Timeout)
	}
}
