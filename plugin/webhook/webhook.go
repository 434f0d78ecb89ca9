// Package webhook implements the notify plugin.
//
// Scripts call __notify(frame, payload). The frame geometry and payload are
// POSTed as JSON to a configured URL. Retries with exponential backoff on 5xx
// responses and network errors; 4xx responses fail immediately. The call
// returns the response status code.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/framewire/iox"
	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/retry"
	"github.com/pithecene-io/framewire/types"
)

// Name is the plugin name.
const Name = "notify"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 2

// Config configures the notify plugin.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the first retry delay (default retry.DefaultBase).
	Backoff time.Duration
}

// Plugin posts frame events to an HTTP endpoint.
type Plugin struct {
	config Config
	client *http.Client
}

// New creates the notify plugin.
func New(cfg Config) (*Plugin, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook plugin requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Plugin{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Callback implements plugin.Plugin.
func (p *Plugin) Callback(frame types.NativeFrame, args []any) (any, error) {
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}
	code, err := p.Notify(context.Background(), plugin.NewFrameEvent(Name, frame, payload))
	if err != nil {
		return nil, err
	}
	return code, nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func clientError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500
}

// Notify POSTs event and returns the final 2xx status code.
func (p *Plugin) Notify(ctx context.Context, event *plugin.FrameEvent) (int, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("webhook: marshal event: %w", err)
	}

	var code int
	err = retry.Do(ctx, "webhook", retry.Policy{Retries: p.config.Retries, Base: p.config.Backoff, Permanent: clientError},
		func(ctx context.Context) error {
			var err error
			code, err = p.doRequest(ctx, body)
			return err
		})
	if err != nil {
		return 0, err
	}
	return code, nil
}

// doRequest performs a single HTTP POST and returns nil on 2xx.
func (p *Plugin) doRequest(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, &retry.PermanentError{Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// Close releases idle connections.
func (p *Plugin) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

var _ plugin.Plugin = (*Plugin)(nil)
