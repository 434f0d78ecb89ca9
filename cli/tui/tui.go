package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/framewire/capture"
	"github.com/pithecene-io/framewire/metrics"
	"github.com/pithecene-io/framewire/scheduler"
)

// DefaultInterval is the refresh period of the live view.
const DefaultInterval = 250 * time.Millisecond

// Sample is one refresh worth of counters.
type Sample struct {
	Elapsed    time.Duration
	Processors int
	Metrics    metrics.Snapshot
	Scheduler  scheduler.Stats
	Cameras    []capture.CameraStats
}

// SampleFunc produces the current Sample. It is called from the TUI goroutine.
type SampleFunc func() Sample

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

// LiveModel is a Bubble Tea model that redraws counters on every tick.
type LiveModel struct {
	title    string
	sample   SampleFunc
	interval time.Duration
	current  Sample
	width    int
	quitting bool
}

// NewLiveModel creates a live model. interval defaults to DefaultInterval.
func NewLiveModel(title string, sample SampleFunc, interval time.Duration) LiveModel {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return LiveModel{title: title, sample: sample, interval: interval, current: sample()}
}

func (m LiveModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m LiveModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		m.current = m.sample()
		return m, m.tick()
	}

	return m, nil
}

// Quitting reports whether the user asked to quit.
func (m LiveModel) Quitting() bool { return m.quitting }

// View implements tea.Model.
func (m LiveModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.current

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s  %s", m.title, s.Elapsed.Truncate(time.Second))))
	b.WriteString("\n")

	boxes := []string{
		renderStatBox("Processors", int64(s.Processors), highlightColor),
		renderStatBox("Delivered", s.Metrics.FramesDelivered, successColor),
		renderStatBox("Invocations", s.Metrics.Invocations, highlightColor),
		renderStatBox("Dropped", s.Metrics.FramesDropped, warningColor),
		renderStatBox("Errors", s.Metrics.InvocationErrors+s.Metrics.PluginErrors, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		LabelStyle.Render("Queued:"), ValueStyle.Render(fmt.Sprint(s.Scheduler.Queued)),
		LabelStyle.Render("Skipped:"), CountStyle(s.Metrics.FramesSkipped, warningColor).Render(fmt.Sprint(s.Metrics.FramesSkipped)),
		LabelStyle.Render("Plugin calls:"), ValueStyle.Render(fmt.Sprint(s.Metrics.PluginCalls)),
	))

	if len(s.Cameras) > 0 {
		b.WriteString("\n")
		b.WriteString(renderCameras(s.Cameras))
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to stop the run"))
	return b.String()
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return StatBoxStyle.BorderForeground(color).Render(content)
}

func renderCameras(cams []capture.CameraStats) string {
	row := func(cols ...string) string {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = lipgloss.NewStyle().Width(12).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	}

	lines := []string{HeaderStyle.Render(row("SOURCE", "NAME", "PRODUCED", "STARVED", "IN FLIGHT"))}
	for _, c := range cams {
		lines = append(lines, row(
			fmt.Sprint(c.ID), c.Name, fmt.Sprint(c.Produced), fmt.Sprint(c.Starved),
			fmt.Sprintf("%d/%d", c.Pool.InFlight, c.Pool.Size),
		))
	}
	return strings.Join(lines, "\n") + "\n"
}

// RunLive shows the live view until the user quits or ctx is done.
// It reports whether the user quit.
func RunLive(ctx context.Context, title string, sample SampleFunc) (bool, error) {
	p := tea.NewProgram(NewLiveModel(title, sample, DefaultInterval), tea.WithAltScreen())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-stop:
		}
	}()

	final, err := p.Run()
	if err != nil {
		return false, err
	}
	m, _ := final.(LiveModel)
	return m.Quitting(), nil
}
