// Package types holds the interfaces shared between the frame processing core
// and its external collaborators (capture pipeline, source lookup).
package types

import "time"

// NativeFrame is one opaque buffer produced by a capture pipeline.
//
// The core never decodes a frame. It reads the descriptive accessors to
// expose them to scripts and hands the frame unchanged to plugins.
//
// Ownership: a delivered frame carries exactly one reference for the core.
// The core calls Release exactly once per delivery, after which the frame
// must not be touched.
type NativeFrame interface {
	// Width is the frame width in pixels.
	Width() int
	// Height is the frame height in pixels.
	Height() int
	// BytesPerRow is the stride of the first plane.
	BytesPerRow() int
	// PlanesCount is the number of image planes.
	PlanesCount() int
	// Format names the pixel format (e.g. "yuv", "rgb").
	Format() string
	// Timestamp is the capture time.
	Timestamp() time.Time
	// Data returns the raw buffer. Valid only until Release.
	Data() []byte
	// Release drops the core's reference.
	Release()
}

// FrameCallback is invoked by a source once per arriving frame, on the
// source's own delivery goroutine.
type FrameCallback func(frame NativeFrame)
