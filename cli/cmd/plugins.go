package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/framewire/cli/config"
	"github.com/pithecene-io/framewire/cli/render"
	"github.com/pithecene-io/framewire/iox"
	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/plugin/example"
	"github.com/pithecene-io/framewire/plugin/redis"
	"github.com/pithecene-io/framewire/plugin/s3"
	"github.com/pithecene-io/framewire/plugin/webhook"
)

// PluginInfo describes one built-in plugin.
type PluginInfo struct {
	Name        string `json:"name" yaml:"name"`
	Global      string `json:"global" yaml:"global"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Description string `json:"description" yaml:"description"`
}

// PluginsCommand returns the plugins command.
// It lists the built-in plugins and whether the config enables them.
func PluginsCommand() *cli.Command {
	return &cli.Command{
		Name:   "plugins",
		Usage:  "List built-in frame processor plugins",
		Flags:  append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...),
		Action: pluginsAction,
	}
}

func pluginsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c, "plugins"); err != nil {
		return err
	}

	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		if cfg, err = config.Load(path); err != nil {
			return cli.Exit(err.Error(), exitSetupError)
		}
	}
	return r.Render(listPlugins(cfg.Plugins))
}

func listPlugins(p config.PluginsConfig) []PluginInfo {
	return []PluginInfo{
		{
			Name:        example.Name,
			Global:      plugin.GlobalName(example.Name),
			Enabled:     p.Example != nil && p.Example.Enabled,
			Description: "logs the frame and returns a sample object",
		},
		{
			Name:        redis.Name,
			Global:      plugin.GlobalName(redis.Name),
			Enabled:     p.Redis != nil,
			Description: "publishes a frame event to a Redis channel",
		},
		{
			Name:        s3.Name,
			Global:      plugin.GlobalName(s3.Name),
			Enabled:     p.S3 != nil,
			Description: "uploads the frame buffer to an S3 bucket",
		},
		{
			Name:        webhook.Name,
			Global:      plugin.GlobalName(webhook.Name),
			Enabled:     p.Webhook != nil,
			Description: "posts a frame event to an HTTP endpoint",
		},
	}
}

// buildPlugins constructs every plugin the config enables. On error the
// plugins built so far are closed.
func buildPlugins(ctx context.Context, p config.PluginsConfig, logger *log.Logger) (plugins []plugin.Plugin, err error) {
	defer func() {
		if err != nil {
			closers := make([]io.Closer, 0, len(plugins))
			for _, pl := range plugins {
				closers = append(closers, iox.AsCloser(pl))
			}
			_ = iox.CloseAll(closers...)
			plugins = nil
		}
	}()

	if p.Example != nil && p.Example.Enabled {
		plugins = append(plugins, example.New(logger))
	}
	if rc := p.Redis; rc != nil {
		pl, err := redis.New(redis.Config{
			URL:     rc.URL,
			Channel: rc.Channel,
			Timeout: rc.Timeout.Duration,
			Retries: config.RetriesOr(rc.Retries, redis.DefaultRetries),
		})
		if err != nil {
			return plugins, fmt.Errorf("plugins.redis: %w", err)
		}
		plugins = append(plugins, pl)
	}
	if sc := p.S3; sc != nil {
		pl, err := s3.New(ctx, s3.Config{
			Bucket:       sc.Bucket,
			Prefix:       sc.Prefix,
			Region:       sc.Region,
			Endpoint:     sc.Endpoint,
			UsePathStyle: sc.PathStyle,
			Timeout:      sc.Timeout.Duration,
			Retries:      config.RetriesOr(sc.Retries, s3.DefaultRetries),
		})
		if err != nil {
			return plugins, fmt.Errorf("plugins.s3: %w", err)
		}
		plugins = append(plugins, pl)
	}
	if wc := p.Webhook; wc != nil {
		pl, err := webhook.New(webhook.Config{
			URL:     wc.URL,
			Headers: wc.Headers,
			Timeout: wc.Timeout.Duration,
			Retries: config.RetriesOr(wc.Retries, webhook.DefaultRetries),
		})
		if err != nil {
			return plugins, fmt.Errorf("plugins.webhook: %w", err)
		}
		plugins = append(plugins, pl)
	}
	return plugins, nil
}
