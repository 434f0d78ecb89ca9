package plugin

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/frame"
	"github.com/pithecene-io/framewire/types"
	"github.com/pithecene-io/framewire/value"
)

// Install defines the global for a plugin previously added under name.
// Must be called on the goroutine that owns rt.
func (r *Registry) Install(rt *goja.Runtime, name string) error {
	p, err := r.Lookup(name)
	if err != nil {
		return err
	}
	global := GlobalName(name)
	if err := rt.Set(global, r.dispatcher(rt, global, p)); err != nil {
		return fmt.Errorf("install %s: %w", global, err)
	}
	r.logger.Debug("plugin installed", map[string]any{"plugin": name, "global": global})
	return nil
}

// InstallAll installs every registered plugin into rt.
func (r *Registry) InstallAll(rt *goja.Runtime) error {
	for _, name := range r.Names() {
		if err := r.Install(rt, name); err != nil {
			return err
		}
	}
	return nil
}

// dispatcher builds the script callable for one plugin. Errors are thrown
// into the calling script where they can be caught.
func (r *Registry) dispatcher(rt *goja.Runtime, global string, p Plugin) func(goja.FunctionCall) goja.Value {
	name := p.Name()
	return func(call goja.FunctionCall) goja.Value {
		r.collector.IncPluginCall(name)

		h, ok := frame.Unwrap(call.Argument(0))
		if !ok {
			r.collector.IncPluginError()
			panic(rt.NewTypeError("%s: %v", global, ErrNotFrame))
		}
		nf, err := h.Native()
		if err != nil {
			r.collector.IncPluginError()
			panic(rt.NewTypeError("%s: %v", global, err))
		}

		var rest []goja.Value
		if len(call.Arguments) > 1 {
			rest = call.Arguments[1:]
		}
		converted, err := value.FromJSArgs(rest, 1)
		if err != nil {
			r.collector.IncPluginError()
			panic(rt.NewGoError(fmt.Errorf("%s: %w", global, err)))
		}
		args := make([]any, len(converted))
		for i, v := range converted {
			args[i] = v.Native()
		}

		out, err := invoke(p, nf, args)
		if err != nil {
			r.collector.IncPluginError()
			r.logger.Warn("plugin call failed", map[string]any{"plugin": name, "error": err.Error()})
			panic(rt.NewGoError(fmt.Errorf("%s: %w", global, err)))
		}

		result, err := value.FromNative(out)
		if err != nil {
			r.collector.IncPluginError()
			panic(rt.NewGoError(fmt.Errorf("%s: return value: %w", global, err)))
		}
		ret, err := value.ToJS(rt, result)
		if err != nil {
			r.collector.IncPluginError()
			panic(rt.NewGoError(fmt.Errorf("%s: return value: %w", global, err)))
		}
		return ret
	}
}

// invoke calls the plugin, turning a panic into an error.
func invoke(p Plugin, nf types.NativeFrame, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panic: %v", r)
		}
	}()
	return p.Callback(nf, args)
}
