package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/types"
)

// CameraConfig configures a simulated camera.
type CameraConfig struct {
	ID      int
	Name    string
	FPS     float64
	Width   int
	Height  int
	Format  string
	Buffers int
	Logger  *log.Logger
}

// CameraStats is a point-in-time view of camera counters.
type CameraStats struct {
	ID        int       `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Produced  int64     `json:"produced" yaml:"produced"`
	Starved   int64     `json:"starved" yaml:"starved"`
	Unclaimed int64     `json:"unclaimed" yaml:"unclaimed"`
	Pool      PoolStats `json:"pool" yaml:"pool"`
}

// Camera produces synthetic frames on its own goroutine.
// It implements types.Source.
type Camera struct {
	id     int
	name   string
	period time.Duration
	pool   *Pool
	logger *log.Logger

	mu sync.Mutex
	cb types.FrameCallback

	seq       atomic.Uint64
	produced  atomic.Int64
	starved   atomic.Int64
	unclaimed atomic.Int64
}

// NewCamera creates a camera. FPS defaults to 30.
func NewCamera(cfg CameraConfig) *Camera {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("camera-%d", cfg.ID)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Camera{
		id:     cfg.ID,
		name:   name,
		period: time.Duration(float64(time.Second) / fps),
		pool: NewPool(PoolConfig{
			Width: cfg.Width, Height: cfg.Height, Format: cfg.Format, Buffers: cfg.Buffers,
		}),
		logger: logger.Named("capture").With(map[string]any{"camera": name, "source_id": cfg.ID}),
	}
}

// ID returns the source id.
func (c *Camera) ID() int { return c.id }

// Name returns the camera name.
func (c *Camera) Name() string { return c.name }

// SetFrameCallback implements types.Source.
func (c *Camera) SetFrameCallback(fn types.FrameCallback) {
	c.mu.Lock()
	c.cb = fn
	c.mu.Unlock()
}

// ClearFrameCallback implements types.Source.
func (c *Camera) ClearFrameCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

// Emit produces one frame now. It returns false when no buffer was free.
// Frames with no callback attached are released immediately.
func (c *Camera) Emit(now time.Time) bool {
	seq := c.seq.Add(1)
	buf, ok := c.pool.Acquire(seq, now)
	if !ok {
		c.starved.Add(1)
		return false
	}
	fill(buf.data, seq)
	c.produced.Add(1)

	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb == nil {
		c.unclaimed.Add(1)
		buf.Release()
		return true
	}
	cb(buf)
	return true
}

// fill writes a moving gradient so consecutive frames differ.
func fill(data []byte, seq uint64) {
	for i := range data {
		data[i] = byte(uint64(i) + seq)
	}
}

// Run emits frames at the configured rate until ctx is done.
func (c *Camera) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	c.logger.Info("camera started", map[string]any{"period": c.period.String()})
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("camera stopped", map[string]any{"produced": c.produced.Load()})
			return nil
		case now := <-ticker.C:
			if !c.Emit(now) {
				c.logger.Debug("no free buffer, frame skipped", nil)
			}
		}
	}
}

// Stats returns camera counters.
func (c *Camera) Stats() CameraStats {
	return CameraStats{
		ID:        c.id,
		Name:      c.name,
		Produced:  c.produced.Load(),
		Starved:   c.starved.Load(),
		Unclaimed: c.unclaimed.Load(),
		Pool:      c.pool.Stats(),
	}
}

// ErrDuplicateCamera is returned when two cameras share an id.
var ErrDuplicateCamera = errors.New("duplicate camera id")

// Registry resolves source ids to cameras. It implements types.SourceFinder.
type Registry struct {
	mu   sync.RWMutex
	cams map[int]*Camera
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cams: make(map[int]*Camera)}
}

// Add registers c.
func (r *Registry) Add(c *Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cams[c.id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateCamera, c.id)
	}
	r.cams[c.id] = c
	return nil
}

// FindSourceByID implements types.SourceFinder.
func (r *Registry) FindSourceByID(id int) (types.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cams[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Cameras returns registered cameras ordered by id.
func (r *Registry) Cameras() []*Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Camera, 0, len(r.cams))
	for _, c := range r.cams {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Stats returns counters for every camera ordered by id.
func (r *Registry) Stats() []CameraStats {
	cams := r.Cameras()
	out := make([]CameraStats, len(cams))
	for i, c := range cams {
		out[i] = c.Stats()
	}
	return out
}

// Run runs every camera until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range r.Cameras() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Run(ctx)
		}()
	}
	wg.Wait()
}
