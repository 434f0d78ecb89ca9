package runtime

import (
	"strings"

	"github.com/dop251/goja"

	"github.com/pithecene-io/framewire/log"
)

// InstallConsole routes console.* on rt to logger. Used for both runtimes.
func InstallConsole(rt *goja.Runtime, logger *log.Logger) error {
	console := rt.NewObject()
	methods := map[string]func(string, map[string]any){
		"log":   logger.Info,
		"info":  logger.Info,
		"debug": logger.Debug,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	for name, emit := range methods {
		level := name
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			emit(joinArgs(call.Arguments), map[string]any{"console": level})
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return rt.Set("console", console)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
