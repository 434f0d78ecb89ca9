// Package capture is a simulated capture pipeline.
//
// It stands in for real camera hardware: each Camera draws refcounted
// buffers from a fixed Pool and hands them to the attached frame callback.
// A buffer returns to its pool when the last reference is released, so a
// consumer that forgets to release starves the camera, and one that
// releases twice panics.
package capture

import (
	"fmt"
	"sync/atomic"
	"time"
)

// PoolConfig configures a buffer pool.
type PoolConfig struct {
	Width   int
	Height  int
	Format  string
	Buffers int
}

// PoolStats is a point-in-time view of pool counters.
type PoolStats struct {
	Size      int   `json:"size" yaml:"size"`
	InFlight  int   `json:"in_flight" yaml:"in_flight"`
	Acquired  int64 `json:"acquired" yaml:"acquired"`
	Released  int64 `json:"released" yaml:"released"`
	Exhausted int64 `json:"exhausted" yaml:"exhausted"`
}

// Pool is a fixed set of frame buffers.
type Pool struct {
	width, height int
	format        string
	free          chan *Buffer
	size          int

	acquired  atomic.Int64
	released  atomic.Int64
	exhausted atomic.Int64
}

// bytesPerPixel for the formats the simulator knows; others use 4.
var bytesPerPixel = map[string]int{"rgb": 3, "rgba": 4, "bgra": 4, "gray": 1}

// NewPool allocates every buffer up front.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Buffers <= 0 {
		cfg.Buffers = 3
	}
	if cfg.Format == "" {
		cfg.Format = "rgba"
	}
	p := &Pool{
		width:  cfg.Width,
		height: cfg.Height,
		format: cfg.Format,
		free:   make(chan *Buffer, cfg.Buffers),
		size:   cfg.Buffers,
	}
	stride := cfg.Width * bpp(cfg.Format)
	for range cfg.Buffers {
		p.free <- &Buffer{pool: p, stride: stride, data: make([]byte, stride*cfg.Height)}
	}
	return p
}

func bpp(format string) int {
	if n, ok := bytesPerPixel[format]; ok {
		return n
	}
	return 4
}

// Acquire takes a free buffer holding one reference. It never blocks;
// ok is false when every buffer is in flight.
func (p *Pool) Acquire(seq uint64, ts time.Time) (*Buffer, bool) {
	select {
	case b := <-p.free:
		b.seq = seq
		b.ts = ts
		b.refs.Store(1)
		p.acquired.Add(1)
		return b, true
	default:
		p.exhausted.Add(1)
		return nil, false
	}
}

// Stats returns pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Size:      p.size,
		InFlight:  p.size - len(p.free),
		Acquired:  p.acquired.Load(),
		Released:  p.released.Load(),
		Exhausted: p.exhausted.Load(),
	}
}

func (p *Pool) put(b *Buffer) {
	p.released.Add(1)
	p.free <- b
}

// Buffer is one pooled frame. It implements types.NativeFrame.
type Buffer struct {
	pool   *Pool
	data   []byte
	stride int
	seq    uint64
	ts     time.Time
	refs   atomic.Int32
}

func (b *Buffer) Width() int           { return b.pool.width }
func (b *Buffer) Height() int          { return b.pool.height }
func (b *Buffer) BytesPerRow() int     { return b.stride }
func (b *Buffer) PlanesCount() int     { return 1 }
func (b *Buffer) Format() string       { return b.pool.format }
func (b *Buffer) Timestamp() time.Time { return b.ts }
func (b *Buffer) Data() []byte         { return b.data }

// Seq is the camera's sequence number for this frame.
func (b *Buffer) Seq() uint64 { return b.seq }

// Retain adds a reference.
func (b *Buffer) Retain() {
	b.refs.Add(1)
}

// Release drops a reference; the last one returns the buffer to its pool.
func (b *Buffer) Release() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		b.pool.put(b)
	case n < 0:
		panic(fmt.Sprintf("capture: buffer %d released more times than retained", b.seq))
	}
}
