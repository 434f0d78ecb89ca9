package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/framewire/metrics"
	"github.com/pithecene-io/framewire/scheduler"
)

// Report is the structured JSON summary written by `framewire run --report`.
type Report struct {
	Initialized bool              `json:"initialized" yaml:"initialized"`
	DurationMs  int64             `json:"duration_ms" yaml:"duration_ms"`
	Processors  []ProcessorInfo   `json:"processors" yaml:"processors"`
	Plugins     []string          `json:"plugins" yaml:"plugins"`
	Metrics     *metrics.Snapshot `json:"metrics" yaml:"metrics"`
	Scheduler   *scheduler.Stats  `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
}

// BuildReport summarizes the manager's current state.
// stats may be nil when the scheduler does not expose counters.
func BuildReport(m *Manager, snap metrics.Snapshot, stats *scheduler.Stats, elapsed time.Duration) *Report {
	processors := m.Processors()
	plugins := m.Plugins()
	if plugins == nil {
		plugins = []string{}
	}
	return &Report{
		Initialized: m.Initialized(),
		DurationMs:  elapsed.Milliseconds(),
		Processors:  processors,
		Plugins:     plugins,
		Metrics:     &snap,
		Scheduler:   stats,
	}
}

// WriteReport writes the report as JSON to path. "-" writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeReportTo(report *Report, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
