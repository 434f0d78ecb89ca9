// Package example is a demonstration plugin that echoes what it receives.
package example

import (
	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/plugin"
	"github.com/pithecene-io/framewire/types"
)

// Name is the plugin name; scripts call __example_plugin(frame, ...args).
const Name = "example_plugin"

// Plugin logs the frame geometry and arguments and returns a fixed map
// exercising every convertible kind.
type Plugin struct {
	logger *log.Logger
}

// New creates the example plugin.
func New(logger *log.Logger) *Plugin {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Plugin{logger: logger.Named("plugin").With(map[string]any{"plugin": Name})}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Callback implements plugin.Plugin.
func (p *Plugin) Callback(frame types.NativeFrame, args []any) (any, error) {
	p.logger.Info("frame received", map[string]any{
		"width":  frame.Width(),
		"height": frame.Height(),
		"args":   args,
	})
	return map[string]any{
		"example_str":    "Test",
		"example_bool":   true,
		"example_double": 5.3,
		"example_array":  []any{"Hello", true, 17.38},
	}, nil
}

var _ plugin.Plugin = (*Plugin)(nil)
