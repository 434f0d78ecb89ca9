package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/framewire/scheduler"
)

// Config represents a framewire.yaml configuration file.
// All values are optional and act as defaults for framewire run flags.
// CLI flags always override config values.
type Config struct {
	Script  string         `yaml:"script"`
	Runtime RuntimeConfig  `yaml:"runtime"`
	Sources []SourceConfig `yaml:"sources"`
	Plugins PluginsConfig  `yaml:"plugins"`
}

// RuntimeConfig tunes the frame processing runtime.
type RuntimeConfig struct {
	LogLevel          string   `yaml:"log_level"`
	QueueSize         int      `yaml:"queue_size"`
	DropPolicy        string   `yaml:"drop_policy"`
	InvocationTimeout Duration `yaml:"invocation_timeout"`
}

// SourceConfig describes one simulated camera.
type SourceConfig struct {
	ID      int     `yaml:"id"`
	Name    string  `yaml:"name,omitempty"`
	FPS     float64 `yaml:"fps,omitempty"`
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Format  string  `yaml:"format,omitempty"`
	Buffers int     `yaml:"buffers,omitempty"`
}

// PluginsConfig enables built-in plugins. A nil section leaves the plugin off.
type PluginsConfig struct {
	Example *ExampleConfig `yaml:"example,omitempty"`
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
	S3      *S3Config      `yaml:"s3,omitempty"`
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
}

// ExampleConfig enables the example plugin.
type ExampleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RedisConfig configures the publish plugin.
type RedisConfig struct {
	URL     string   `yaml:"url"`
	Channel string   `yaml:"channel,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries *int     `yaml:"retries,omitempty"`
}

// S3Config configures the saveFrame plugin.
type S3Config struct {
	Bucket    string   `yaml:"bucket"`
	Prefix    string   `yaml:"prefix,omitempty"`
	Region    string   `yaml:"region,omitempty"`
	Endpoint  string   `yaml:"endpoint,omitempty"`
	PathStyle bool     `yaml:"path_style,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
	Retries   *int     `yaml:"retries,omitempty"`
}

// WebhookConfig configures the notify plugin.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "250ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// DefaultSource is used when the file declares no sources.
var DefaultSource = SourceConfig{ID: 1, Name: "camera-1", FPS: 30, Width: 640, Height: 480, Format: "rgba", Buffers: 3}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Runtime.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("runtime.queue_size must be >= 0, got %d", c.Runtime.QueueSize))
	}
	if _, err := scheduler.ParseDropPolicy(c.Runtime.DropPolicy); err != nil {
		errs = append(errs, fmt.Errorf("runtime.drop_policy: %w", err))
	}
	if c.Runtime.InvocationTimeout.Duration < 0 {
		errs = append(errs, errors.New("runtime.invocation_timeout must not be negative"))
	}

	seen := make(map[int]bool, len(c.Sources))
	for i, s := range c.Sources {
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate id %d", i, s.ID))
		}
		seen[s.ID] = true
		if s.Width <= 0 || s.Height <= 0 {
			errs = append(errs, fmt.Errorf("sources[%d]: width and height must be positive", i))
		}
		if s.FPS < 0 {
			errs = append(errs, fmt.Errorf("sources[%d]: fps must not be negative", i))
		}
	}

	if r := c.Plugins.Redis; r != nil && r.URL == "" {
		errs = append(errs, errors.New("plugins.redis.url is required"))
	}
	if s := c.Plugins.S3; s != nil && s.Bucket == "" {
		errs = append(errs, errors.New("plugins.s3.bucket is required"))
	}
	if w := c.Plugins.Webhook; w != nil && w.URL == "" {
		errs = append(errs, errors.New("plugins.webhook.url is required"))
	}
	return errors.Join(errs...)
}

// SourcesOrDefault returns the configured sources, or DefaultSource.
func (c *Config) SourcesOrDefault() []SourceConfig {
	if len(c.Sources) == 0 {
		return []SourceConfig{DefaultSource}
	}
	return c.Sources
}

// RetriesOr returns *p, or fallback when p is nil.
func RetriesOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
