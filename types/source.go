package types

// Source is a frame producing source (e.g. one camera preview).
// The core never manages its lifecycle; it only attaches and detaches
// the delivery callback.
type Source interface {
	// SetFrameCallback replaces the delivery callback.
	SetFrameCallback(fn FrameCallback)
	// ClearFrameCallback removes the delivery callback. Frames arriving
	// afterwards are released by the source itself.
	ClearFrameCallback()
}

// SourceFinder resolves source ids to handles.
type SourceFinder interface {
	FindSourceByID(id int) (Source, bool)
}

// SourceFinderFunc adapts a function to SourceFinder.
type SourceFinderFunc func(id int) (Source, bool)

// FindSourceByID implements SourceFinder.
func (f SourceFinderFunc) FindSourceByID(id int) (Source, bool) {
	return f(id)
}

// CallInvoker runs tasks on the goroutine that owns a runtime.
// Invoke queues task and returns without waiting for it.
type CallInvoker interface {
	Invoke(task func()) error
}
