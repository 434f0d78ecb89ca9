package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `script: ./app.js

runtime:
  log_level: debug
  queue_size: 8
  drop_policy: drop_newest
  invocation_timeout: 250ms

sources:
  - id: 1
    name: front
    fps: 15
    width: 640
    height: 480
    format: rgb
    buffers: 4
  - id: 2
    width: 320
    height: 240

plugins:
  example:
    enabled: true
  redis:
    url: redis://localhost:6379/0
    channel: frames
    timeout: 2s
    retries: 3
  s3:
    bucket: frames
    prefix: cam
    region: us-east-1
    endpoint: https://example.com
    path_style: true
  webhook:
    url: https://hooks.example.com/frames
    headers:
      Authorization: Bearer token123
    timeout: 10s
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "script", cfg.Script, "./app.js")
	assertEqual(t, "runtime.log_level", cfg.Runtime.LogLevel, "debug")
	assertEqual(t, "runtime.drop_policy", cfg.Runtime.DropPolicy, "drop_newest")
	if cfg.Runtime.QueueSize != 8 {
		t.Errorf("expected queue_size=8, got %d", cfg.Runtime.QueueSize)
	}
	if cfg.Runtime.InvocationTimeout.Duration != 250*time.Millisecond {
		t.Errorf("expected invocation_timeout=250ms, got %v", cfg.Runtime.InvocationTimeout.Duration)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	front := cfg.Sources[0]
	if front.ID != 1 || front.FPS != 15 || front.Buffers != 4 || front.Format != "rgb" {
		t.Errorf("sources[0] = %+v", front)
	}
	assertEqual(t, "sources[1].name", cfg.Sources[1].Name, "")

	if cfg.Plugins.Example == nil || !cfg.Plugins.Example.Enabled {
		t.Error("expected example plugin enabled")
	}
	if r := cfg.Plugins.Redis; r == nil || r.Channel != "frames" || r.Timeout.Duration != 2*time.Second || RetriesOr(r.Retries, 0) != 3 {
		t.Errorf("plugins.redis = %+v", r)
	}
	if s := cfg.Plugins.S3; s == nil || s.Bucket != "frames" || !s.PathStyle || s.Region != "us-east-1" {
		t.Errorf("plugins.s3 = %+v", s)
	}
	if w := cfg.Plugins.Webhook; w == nil || w.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("plugins.webhook = %+v", w)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	for name, content := range map[string]string{
		"empty":      "",
		"whitespace": "   \n  \n",
		"comments":   "# a comment\n# another\n",
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Script != "" || len(cfg.Sources) != 0 {
				t.Errorf("expected zero config, got %+v", cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/framewire.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTemp(t, "{{invalid yaml")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://cache:6379")

	yaml := `plugins:
  redis:
    url: ${TEST_REDIS_URL}
    channel: ${TEST_CHANNEL_UNSET:-frames}
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "plugins.redis.url", cfg.Plugins.Redis.URL, "redis://cache:6379")
	assertEqual(t, "plugins.redis.channel", cfg.Plugins.Redis.Channel, "frames")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"top level", "script: a.js\nbogus_key: x\n", "bogus_key"},
		{"nested", "runtime:\n  queue_size: 2\n  unknown_field: bad\n", "unknown_field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error for unknown key")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should mention %q, got: %v", tt.key, err)
			}
		})
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"drop policy", "runtime:\n  drop_policy: lifo\n", "drop_policy"},
		{"queue size", "runtime:\n  queue_size: -1\n", "queue_size"},
		{"duplicate source", "sources:\n  - {id: 1, width: 1, height: 1}\n  - {id: 1, width: 1, height: 1}\n", "duplicate id 1"},
		{"zero size", "sources:\n  - {id: 1, width: 0, height: 1}\n", "must be positive"},
		{"redis url", "plugins:\n  redis:\n    channel: x\n", "plugins.redis.url"},
		{"s3 bucket", "plugins:\n  s3:\n    prefix: x\n", "plugins.s3.bucket"},
		{"webhook url", "plugins:\n  webhook:\n    timeout: 1s\n", "plugins.webhook.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "plugins:\n  webhook:\n    url: https://example.com\n    retries: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Plugins.Webhook.Retries == nil {
		t.Fatal("expected retries to be non-nil (*int(0)), got nil")
	}
	if got := RetriesOr(cfg.Plugins.Webhook.Retries, 3); got != 0 {
		t.Errorf("RetriesOr = %d, want 0", got)
	}

	cfg, err = Load(writeTemp(t, "plugins:\n  webhook:\n    url: https://example.com\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := RetriesOr(cfg.Plugins.Webhook.Retries, 3); got != 3 {
		t.Errorf("RetriesOr = %d, want fallback 3", got)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	_, err := Load(writeTemp(t, "runtime:\n  invocation_timeout: not-a-duration\n"))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	cfg, err := Load(writeTemp(t, "runtime:\n  invocation_timeout: \"\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Runtime.InvocationTimeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Runtime.InvocationTimeout.Duration)
	}
}

func TestSourcesOrDefault(t *testing.T) {
	cfg := &Config{}
	got := cfg.SourcesOrDefault()
	if len(got) != 1 || got[0] != DefaultSource {
		t.Errorf("SourcesOrDefault() = %+v, want [DefaultSource]", got)
	}

	cfg.Sources = []SourceConfig{{ID: 7, Width: 1, Height: 1}}
	if got := cfg.SourcesOrDefault(); len(got) != 1 || got[0].ID != 7 {
		t.Errorf("SourcesOrDefault() = %+v", got)
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framewire.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
