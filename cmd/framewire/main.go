// Package main provides the framewire CLI entrypoint.
//
// Usage:
//
//	framewire <command> [options]
//
// Exit codes for `run`:
//   - 0: success
//   - 1: primary script error
//   - 2: setup failure (config, flags, plugins, runtime startup)
//   - 3: --strict and a processor raised an uncaught error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/framewire/cli/cmd"
	"github.com/pithecene-io/framewire/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "framewire",
		Usage:          "Frame processor runtime CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.PluginsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
