package chart

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

type keyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

type snapshotMsg struct{ snap aggregate.Snapshot }

type streamEndedMsg struct{}

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// tuiModel is the bubbletea model holding the latest snapshot.
type tuiModel struct {
	labels Labels
	keys   keyMap
	snap   aggregate.Snapshot
	ended  bool
	width  int
	height int
}

func newTUIModel(labels Labels) tuiModel {
	return tuiModel{labels: labels, keys: defaultKeyMap(), width: 80, height: 20}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) || key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
	case snapshotMsg:
		m.snap = msg.snap
	case streamEndedMsg:
		m.ended = true
	}
	return m, nil
}

func (m tuiModel) View() string {
	status := fmt.Sprintf("%d records", m.snap.Seq)
	if m.ended {
		status += " · stream ended"
	}
	help := helpStyle.Render(status + " · " + m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc)
	return lipgloss.JoinVertical(lipgloss.Left, Frame(m.snap, m.labels, m.width, m.height-1), help)
}

// TUIRenderer shows the chart in a full-screen bubbletea program. Run must
// be called on its own goroutine; Done closes once the program exits.
type TUIRenderer struct {
	program *tea.Program
	pause   time.Duration
	started atomic.Bool
	done    chan struct{}
}

// NewTUIRenderer builds the program. Extra options are appended after the
// alt-screen option (tests pass WithInput/WithOutput).
func NewTUIRenderer(labels Labels, pause time.Duration, opts ...tea.ProgramOption) *TUIRenderer {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUIRenderer{
		program: tea.NewProgram(newTUIModel(labels), opts...),
		pause:   pause,
		done:    make(chan struct{}),
	}
}

// Run blocks until the operator quits or the program's context is cancelled.
func (r *TUIRenderer) Run() error {
	r.started.Store(true)
	defer close(r.done)
	_, err := r.program.Run()
	switch {
	case errors.Is(err, tea.ErrProgramPanic):
		return err
	case errors.Is(err, tea.ErrProgramKilled), errors.Is(err, tea.ErrInterrupted):
		return nil
	}
	return err
}

// Done closes when the program has exited.
func (r *TUIRenderer) Done() <-chan struct{} { return r.done }

func (r *TUIRenderer) Name() string { return "tui" }

// Render hands snap to the program. Once the program has exited it is a no-op.
func (r *TUIRenderer) Render(snap aggregate.Snapshot) error {
	select {
	case <-r.done:
		return nil
	default:
	}
	r.program.Send(snapshotMsg{snap: snap})
	if r.pause > 0 {
		time.Sleep(r.pause)
	}
	return nil
}

// Close marks the stream as ended; the chart stays up until the operator quits.
func (r *TUIRenderer) Close() error {
	if !r.started.Load() {
		return nil
	}
	select {
	case <-r.done:
	default:
		r.program.Send(streamEndedMsg{})
	}
	return nil
}

// Kill stops the program immediately and restores the terminal.
func (r *TUIRenderer) Kill() {
	r.program.Kill()
}
