// Package redis implements the publish plugin.
//
// Scripts call __publish(frame, payload) or __publish(frame, channel, payload).
// The frame geometry and the payload are PUBLISHed as one JSON message and
// the call returns the number of subscribers that received it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/retry"
	"github.com/pithecene-io/framewire/types"
)

// Name is the plugin name.
const Name = "publish"

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "framewire:frames"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 2 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 1

// Config configures the publish plugin.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is used when the script does not name one.
	Channel string
	// Timeout is the per-publish timeout (default 2s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the first retry delay (default retry.DefaultBase).
	Backoff time.Duration
}

// Plugin publishes frame events via Redis PUBLISH.
type Plugin struct {
	config Config
	client *goredis.Client
}

// New creates the publish plugin. It does not connect until the first call.
func New(cfg Config) (*Plugin, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis plugin requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis plugin: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Plugin{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Callback implements plugin.Plugin.
func (p *Plugin) Callback(frame types.NativeFrame, args []any) (any, error) {
	channel, payload, err := p.parseArgs(args)
	if err != nil {
		return nil, err
	}
	return p.Publish(context.Background(), channel, plugin.NewFrameEvent(Name, frame, payload))
}

// parseArgs accepts (payload) or (channel, payload).
func (p *Plugin) parseArgs(args []any) (string, any, error) {
	switch len(args) {
	case 0:
		return "", nil, errors.New("publish: missing payload")
	case 1:
		return p.config.Channel, args[0], nil
	default:
		channel, ok, err := plugin.StringArg(args, 0, "channel")
		if err != nil {
			return "", nil, fmt.Errorf("publish: %w", err)
		}
		if !ok || channel == "" {
			channel = p.config.Channel
		}
		return channel, args[1], nil
	}
}

// Publish sends event as JSON to channel and returns the receiver count.
func (p *Plugin) Publish(ctx context.Context, channel string, event *plugin.FrameEvent) (int64, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("redis: marshal event: %w", err)
	}

	var receivers int64
	err = retry.Do(ctx, "redis", retry.Policy{Retries: p.config.Retries, Base: p.config.Backoff},
		func(ctx context.Context) error {
			publishCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()
			n, err := p.client.Publish(publishCtx, channel, body).Result()
			if errors.Is(err, goredis.ErrClosed) {
				return &retry.PermanentError{Err: err}
			}
			receivers = n
			return err
		})
	if err != nil {
		return 0, err
	}
	return receivers, nil
}

// Close releases the connection pool.
func (p *Plugin) Close() error {
	return p.client.Close()
}

var _ plugin.Plugin = (*Plugin)(nil)
