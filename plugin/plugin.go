// Package plugin exposes native functions inside the frame processing runtime.
//
// Each registered Plugin is installed as a global named Prefix+Name. Scripts
// call it as __name(frame, ...args): argument 0 must be the frame handle of
// the running invocation, the remaining arguments are converted left to right
// through package value, and the native return value is converted back.
package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/metrics"
	"github.com/pithecene-io/framewire/types"
)

// Prefix namespaces plugin globals away from user code.
const Prefix = "__"

var (
	// ErrPluginNotFound is returned by Lookup for unknown names.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrNotFrame is raised when argument 0 is not a frame handle.
	ErrNotFrame = errors.New("argument 0 must be a frame")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("plugin already registered")
	// ErrInvalidName is returned for names that are not identifiers.
	ErrInvalidName = errors.New("invalid plugin name")
)

var validName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Plugin is a native function callable from processors.
type Plugin interface {
	// Name is the global name without Prefix.
	Name() string
	// Callback runs on the frame processing goroutine. args holds the
	// converted script arguments (nil, bool, int64, float64, string,
	// []any, map[string]any). The return value must be convertible back.
	Callback(frame types.NativeFrame, args []any) (any, error)
}

// PrimaryAware plugins receive the primary runtime's invoker at
// registration, for plugins that must call back into the primary runtime.
type PrimaryAware interface {
	SetPrimaryInvoker(invoker types.CallInvoker)
}

// CallbackFunc is the signature of Plugin.Callback.
type CallbackFunc func(frame types.NativeFrame, args []any) (any, error)

type funcPlugin struct {
	name string
	fn   CallbackFunc
}

func (p funcPlugin) Name() string { return p.name }

func (p funcPlugin) Callback(frame types.NativeFrame, args []any) (any, error) {
	return p.fn(frame, args)
}

// Func adapts a function to Plugin.
func Func(name string, fn CallbackFunc) Plugin {
	return funcPlugin{name: name, fn: fn}
}

// GlobalName returns the script global for a plugin name.
func GlobalName(name string) string {
	return Prefix + name
}

// Registry holds registered plugins. Entries are never removed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Plugin

	logger    *log.Logger
	collector *metrics.Collector
}

// NewRegistry creates an empty registry. logger and collector may be nil.
func NewRegistry(logger *log.Logger, collector *metrics.Collector) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		entries:   make(map[string]Plugin),
		logger:    logger,
		collector: collector,
	}
}

// Add records p. It does not touch any runtime.
func (r *Registry) Add(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", ErrInvalidName)
	}
	name := p.Name()
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.entries[name] = p
	return nil
}

// Lookup returns the plugin registered under name.
func (r *Registry) Lookup(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
