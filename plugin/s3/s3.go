// Package s3 implements the saveFrame plugin.
//
// Scripts call __saveFrame(frame) or __saveFrame(frame, key). The raw frame
// bytes are written with PutObject and the call returns the object key.
// Works with S3-compatible providers through Endpoint and UsePathStyle.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/retry"
	"github.com/pithecene-io/framewire/types"
)

// Name is the plugin name.
const Name = "saveFrame"

// DefaultTimeout is the default per-upload timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 2

// Putter is the subset of *s3.Client the plugin uses.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the saveFrame plugin.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is prepended to every key (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint URL for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
	// Timeout is the per-upload timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.Retries)
	}
	return nil
}

// Plugin uploads frame buffers to a bucket.
type Plugin struct {
	config Config
	client Putter
	now    func() time.Time
}

// New creates the plugin with a client built from the AWS default
// credential chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return NewWithClient(cfg, s3.NewFromConfig(awsConfig, s3Opts...))
}

// NewWithClient creates the plugin around an existing client.
func NewWithClient(cfg Config, client Putter) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("s3 plugin requires a client")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Plugin{config: cfg, client: client, now: time.Now}, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Callback implements plugin.Plugin.
func (p *Plugin) Callback(frame types.NativeFrame, args []any) (any, error) {
	key, ok, err := plugin.StringArg(args, 0, "key")
	if err != nil {
		return nil, fmt.Errorf("saveFrame: %w", err)
	}
	if !ok || key == "" {
		key = DefaultKey(frame)
	}
	return p.Save(context.Background(), frame, key)
}

// DefaultKey names a frame by capture day, time and geometry, e.g.
// 2026-02-07/1770465600000-640x480.rgba.
func DefaultKey(frame types.NativeFrame) string {
	ts := frame.Timestamp().UTC()
	return fmt.Sprintf("%s/%d-%dx%d.%s",
		ts.Format("2006-01-02"), ts.UnixMilli(), frame.Width(), frame.Height(), frame.Format())
}

// Save uploads the frame bytes under Prefix/key and returns the full key.
func (p *Plugin) Save(ctx context.Context, frame types.NativeFrame, key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("saveFrame: key %q must not contain ..", key)
	}
	if p.config.Prefix != "" {
		key = path.Join(p.config.Prefix, key)
	}

	data := frame.Data()
	err := retry.Do(ctx, "s3", retry.Policy{Retries: p.config.Retries}, func(ctx context.Context) error {
		putCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
		_, err := p.client.PutObject(putCtx, &s3.PutObjectInput{
			Bucket:        aws.String(p.config.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/octet-stream"),
			Metadata: map[string]string{
				"width":         strconv.Itoa(frame.Width()),
				"height":        strconv.Itoa(frame.Height()),
				"bytes-per-row": strconv.Itoa(frame.BytesPerRow()),
				"format":        frame.Format(),
				"saved-at":      p.now().UTC().Format(time.RFC3339),
			},
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

var _ plugin.Plugin = (*Plugin)(nil)
