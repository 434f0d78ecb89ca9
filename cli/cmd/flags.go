// Package cmd provides CLI commands for the framewire binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea live view.
	// Only the run command supports it.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show a live stats view while running (run only)",
	}

	// ConfigFlag points at a framewire.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a framewire.yaml config file",
		EnvVars: []string{"FRAMEWIRE_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for commands that only report.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// rejectTUI returns an exit error when --tui was passed to a command that
// does not support it.
func rejectTUI(c *cli.Context, command string) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for "+command+" command", 1)
	}
	return nil
}
