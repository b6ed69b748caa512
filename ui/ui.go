package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/fablecast/fablecast/internal/studio"
)

// tailLen is how many past events stay on screen.
const tailLen = 5

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	tailStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}).Italic(true)
	cancelStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#ED567A", Dark: "#ED567A"})
)

// eventMsg wraps one pipeline event.
type eventMsg studio.Event

// closedMsg means the event stream ended and the pipeline is done.
type closedMsg struct{}

// Model is the progress TUI.
type Model struct {
	cfg    Config
	events <-chan studio.Event
	cancel func()

	spinner  spinner.Model
	progress progress.Model

	stage     studio.Stage
	message   string
	tail      []string
	width     int
	done      bool
	cancelled bool
}

// NewModel builds the progress model. cancel is invoked when the user
// aborts; the events channel closing ends the program.
func NewModel(cfg Config, events <-chan studio.Event, cancel func()) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = stageStyle
	return Model{
		cfg:      cfg,
		events:   events,
		cancel:   cancel,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		stage:    studio.StageStory,
		message:  "starting",
		width:    80,
	}
}

// NewProgram wraps the model in a bubbletea program.
func NewProgram(cfg Config, events <-chan studio.Event, cancel func()) *tea.Program {
	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(NewModel(cfg, events, cancel), opts...)
}

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.nextEvent())
}

// nextEvent delivers the next pipeline event, or closedMsg at the end
// of the stream.
func (m Model) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			// Keep draining; the pipeline closes the stream when it
			// actually stops.
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case eventMsg:
		m.stage = msg.Stage
		m.message = msg.Message
		if msg.Message != "" {
			m.tail = append(m.tail, msg.Message)
			if len(m.tail) > tailLen {
				m.tail = m.tail[len(m.tail)-tailLen:]
			}
		}
		return m, tea.Batch(m.progress.SetPercent(msg.Frac), m.nextEvent())

	case closedMsg:
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the progress screen.
func (m Model) View() string {
	var b strings.Builder

	if m.cfg.Title != "" {
		b.WriteString(titleStyle.Render(m.cfg.Title))
		b.WriteString("\n\n")
	}

	status := fmt.Sprintf("%s%s", m.spinner.View(), stageStyle.Render(string(m.stage)))
	if m.cancelled && !m.done {
		status = cancelStyle.Render("cancelling…")
	}
	b.WriteString(status)
	b.WriteString("  ")
	b.WriteString(truncate(m.message, m.width-lipgloss.Width(status)-4))
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n\n")

	for _, line := range m.tail {
		b.WriteString(tailStyle.Render("· " + truncate(line, m.width-4)))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("\nq: cancel"))
	b.WriteString("\n")
	return b.String()
}

// Done reports whether the stream finished (as opposed to the user
// cancelling mid-run).
func (m Model) Done() bool { return m.done && !m.cancelled }

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
