package chart

import (
	"bytes"
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func teaQuitMsg() tea.Msg { return tea.Quit() }

func newTestTUIRenderer(t *testing.T) (*TUIRenderer, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := NewTUIRenderer(Labels{}, 0,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(&bytes.Buffer{}),
		tea.WithoutSignalHandler(),
	)
	return r, cancel
}
