package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/framewire/capture"
	"github.com/pithecene-io/framewire/cli/config"
	"github.com/pithecene-io/framewire/cli/render"
	"github.com/pithecene-io/framewire/cli/tui"
	"github.com/pithecene-io/framewire/host"
	"github.com/pithecene-io/framewire/iox"
	"github.com/pithecene-io/framewire/log"
	"github.com/pithecene-io/framewire/runtime"
	"github.com/pithecene-io/framewire/scheduler"
)

// Exit codes for the run command.
const (
	exitSuccess        = 0
	exitScriptError    = 1
	exitSetupError     = 2
	exitReportedErrors = 3
)

// RunCommand returns the run command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a primary script against the configured sources",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "script",
				Usage: "Path to the primary script (overrides config)",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
			// Runtime flags
			&cli.IntFlag{
				Name:  "queue-size",
				Usage: fmt.Sprintf("Frame queue bound of the frame processor (default %d)", scheduler.DefaultQueueSize),
			},
			&cli.StringFlag{
				Name:  "drop-policy",
				Usage: "Queue overflow policy: drop_oldest or drop_newest",
			},
			&cli.DurationFlag{
				Name:  "invocation-timeout",
				Usage: "Interrupt processors running longer than this (0 disables)",
			},
			// Logging flags
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
			// Output flags
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the JSON run report to this path (- for stderr)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit 3 when any processor raised an uncaught error",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the run summary",
			},
			FormatFlag,
			NoColorFlag,
			TUIFlag,
		},
		Action: runAction,
	}
}

// runFlags holds the command line values that override the config file.
type runFlags struct {
	script            string
	queueSize         *int
	dropPolicy        string
	invocationTimeout *time.Duration
	logLevel          string
}

// runSettings is the merged result of config file and flags.
type runSettings struct {
	scriptPath        string
	queueSize         int
	dropPolicy        scheduler.DropPolicy
	invocationTimeout time.Duration
	logLevel          string
	sources           []capture.CameraConfig
}

func flagsFromContext(c *cli.Context) runFlags {
	f := runFlags{
		script:     c.String("script"),
		dropPolicy: c.String("drop-policy"),
		logLevel:   c.String("log-level"),
	}
	if c.IsSet("queue-size") {
		n := c.Int("queue-size")
		f.queueSize = &n
	}
	if c.IsSet("invocation-timeout") {
		d := c.Duration("invocation-timeout")
		f.invocationTimeout = &d
	}
	return f
}

// resolveSettings applies flags over cfg. A relative script path in the
// config file resolves against configDir.
func resolveSettings(cfg *config.Config, configDir string, f runFlags) (runSettings, error) {
	s := runSettings{
		scriptPath:        f.script,
		queueSize:         cfg.Runtime.QueueSize,
		invocationTimeout: cfg.Runtime.InvocationTimeout.Duration,
		logLevel:          cfg.Runtime.LogLevel,
	}
	if s.scriptPath == "" && cfg.Script != "" {
		s.scriptPath = cfg.Script
		if !filepath.IsAbs(s.scriptPath) && configDir != "" {
			s.scriptPath = filepath.Join(configDir, s.scriptPath)
		}
	}
	if s.scriptPath == "" {
		return s, errors.New("no script: pass --script or set script in the config file")
	}

	if f.queueSize != nil {
		s.queueSize = *f.queueSize
	}
	if s.queueSize < 0 {
		return s, fmt.Errorf("queue size must be >= 0, got %d", s.queueSize)
	}

	policyName := cfg.Runtime.DropPolicy
	if f.dropPolicy != "" {
		policyName = f.dropPolicy
	}
	policy, err := scheduler.ParseDropPolicy(policyName)
	if err != nil {
		return s, err
	}
	s.dropPolicy = policy

	if f.invocationTimeout != nil {
		s.invocationTimeout = *f.invocationTimeout
	}
	if s.invocationTimeout < 0 {
		return s, errors.New("invocation timeout must not be negative")
	}
	if f.logLevel != "" {
		s.logLevel = f.logLevel
	}

	for _, src := range cfg.SourcesOrDefault() {
		s.sources = append(s.sources, capture.CameraConfig{
			ID:      src.ID,
			Name:    src.Name,
			FPS:     src.FPS,
			Width:   src.Width,
			Height:  src.Height,
			Format:  src.Format,
			Buffers: src.Buffers,
		})
	}
	return s, nil
}

func runAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}

	cfg := &config.Config{}
	configDir := ""
	if path := c.String("config"); path != "" {
		if cfg, err = config.Load(path); err != nil {
			return cli.Exit(err.Error(), exitSetupError)
		}
		configDir = filepath.Dir(path)
	}

	if c.Bool("tui") && !render.IsTTY(os.Stdout) {
		return cli.Exit("--tui requires a terminal on stdout", exitSetupError)
	}

	settings, err := resolveSettings(cfg, configDir, flagsFromContext(c))
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	script, err := os.ReadFile(settings.scriptPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read script: %v", err), exitSetupError)
	}

	logOut, closeLog, err := openLogOutput(c.String("log-file"), c.Bool("tui"))
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	defer closeLog()
	logger := log.New(log.Options{
		Component: "framewire",
		Level:     log.ParseLevel(settings.logLevel),
		Output:    logOut,
	})
	defer func() { _ = logger.Sync() }()

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if d := c.Duration("duration"); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	plugins, err := buildPlugins(ctx, cfg.Plugins, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}

	h, err := host.New(host.Options{
		ScriptName:        filepath.Base(settings.scriptPath),
		Script:            string(script),
		Sources:           settings.sources,
		QueueSize:         settings.queueSize,
		DropPolicy:        settings.dropPolicy,
		InvocationTimeout: settings.invocationTimeout,
		Plugins:           plugins,
		Logger:            logger,
	})
	if err != nil {
		for _, p := range plugins {
			if cl := iox.AsCloser(p); cl != nil {
				iox.DiscardClose(cl)
			}
		}
		return cli.Exit(fmt.Sprintf("failed to create host: %v", err), exitSetupError)
	}

	if err := h.Start(ctx); err != nil {
		if errors.Is(err, host.ErrScript) {
			return cli.Exit(err.Error(), exitScriptError)
		}
		return cli.Exit(fmt.Sprintf("failed to start: %v", err), exitSetupError)
	}

	if c.Bool("tui") {
		if _, err := tui.RunLive(ctx, "framewire: "+filepath.Base(settings.scriptPath), liveSample(h)); err != nil {
			logger.Warn("live view failed", map[string]any{"error": err.Error()})
			<-ctx.Done()
		}
		cancel()
	} else {
		<-ctx.Done()
	}

	if err := h.Close(); err != nil {
		logger.Warn("plugin shutdown failed", map[string]any{"error": err.Error()})
	}

	summary := h.Summary()
	if path := c.String("report"); path != "" {
		if err := runtime.WriteReport(&summary.Report, path); err != nil {
			return cli.Exit(err.Error(), exitSetupError)
		}
	}
	if !c.Bool("quiet") {
		if err := r.Render(summary); err != nil {
			return err
		}
	}

	return cli.Exit("", outcomeToExitCode(summary, c.Bool("strict")))
}

func outcomeToExitCode(s *host.Summary, strict bool) int {
	if strict && s.Metrics != nil && s.Metrics.InvocationErrors > 0 {
		return exitReportedErrors
	}
	return exitSuccess
}

// openLogOutput picks the log destination. The live view owns the
// terminal, so without a log file its logs are discarded.
func openLogOutput(path string, live bool) (io.Writer, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file: %w", err)
		}
		return f, iox.CloseFunc(f), nil
	}
	if live {
		return io.Discard, func() {}, nil
	}
	return os.Stderr, func() {}, nil
}

func liveSample(h *host.Host) tui.SampleFunc {
	return func() tui.Sample {
		return tui.Sample{
			Elapsed:    h.Elapsed(),
			Processors: len(h.Manager().Processors()),
			Metrics:    h.Collector().Snapshot(),
			Scheduler:  h.SecondaryStats(),
			Cameras:    h.Cameras().Stats(),
		}
	}
}
