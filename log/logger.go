// Package log provides structured logging for the frame processing runtimes.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the delivery and dispatch paths (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces and script console output
//
// Every entry carries the component that produced it (e.g. "frame_processor",
// "primary", "scheduler") so interleaved runtime output stays attributable.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with component context.
type Logger struct {
	zap *zap.Logger
	// base carries context fields without the component, so Named can
	// swap the component instead of stacking a second one.
	base *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI and console surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// Options configures logger construction.
type Options struct {
	// Component is attached to every entry as the "component" field.
	Component string
	// Level is the minimum enabled level (zero value is info).
	Level zapcore.Level
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewLogger creates a JSON logger writing to os.Stderr.
func NewLogger(component string) *Logger {
	return New(Options{Component: component, Level: zapcore.DebugLevel})
}

// New creates a logger from options.
func New(opts Options) *Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		opts.Level,
	)
	base := zap.New(core)
	z := base
	if opts.Component != "" {
		z = base.With(zap.String("component", opts.Component))
	}
	return &Logger{zap: z, base: base}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), base: zap.NewNop()}
}

// ParseLevel maps a config level name to a zap level. Unknown names map to info.
func ParseLevel(name string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// Named returns a child logger for a different component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zap: l.base.With(zap.String("component", component)), base: l.base}
}

// With returns a child logger with additional context fields.
func (l *Logger) With(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &Logger{zap: l.zap.With(zf...), base: l.base.With(zf...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
