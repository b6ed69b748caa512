package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fablecast/fablecast/internal/studio"
)

func TestModelTracksEvents(t *testing.T) {
	events := make(chan studio.Event, 4)
	m := NewModel(Config{Title: "Test"}, events, nil)

	updated, _ := m.Update(eventMsg{Stage: studio.StageAssets, Message: "scene 1/6 ready", Frac: 0.3})
	m = updated.(Model)

	if m.stage != studio.StageAssets {
		t.Errorf("stage = %s", m.stage)
	}
	if len(m.tail) != 1 {
		t.Errorf("tail = %v", m.tail)
	}
	if !strings.Contains(m.View(), "scene 1/6 ready") {
		t.Error("view does not show the latest message")
	}
}

func TestModelTailBounded(t *testing.T) {
	m := NewModel(Config{}, nil, nil)
	for i := 0; i < tailLen*3; i++ {
		updated, _ := m.Update(eventMsg{Stage: studio.StageAssets, Message: "m", Frac: 0.1})
		m = updated.(Model)
	}
	if len(m.tail) != tailLen {
		t.Errorf("tail length = %d, want %d", len(m.tail), tailLen)
	}
}

func TestModelQuitsWhenStreamCloses(t *testing.T) {
	m := NewModel(Config{}, nil, nil)
	updated, cmd := m.Update(closedMsg{})
	m = updated.(Model)

	if !m.done {
		t.Error("model not done after stream close")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command is not Quit")
	}
	if !m.Done() {
		t.Error("Done() = false after clean finish")
	}
}

func TestModelCancelKey(t *testing.T) {
	cancelled := false
	m := NewModel(Config{}, nil, func() { cancelled = true })

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)

	if !cancelled {
		t.Error("cancel func not called")
	}
	if m.Done() {
		t.Error("cancelled run must not count as done")
	}
	if !strings.Contains(m.View(), "cancelling") {
		t.Error("view does not show cancel state")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 5); got != "hell…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("hi", 0); got != "" {
		t.Errorf("truncate with zero width = %q", got)
	}
}

func TestNextEventDeliversAndCloses(t *testing.T) {
	events := make(chan studio.Event, 1)
	m := NewModel(Config{}, events, nil)

	events <- studio.Event{Stage: studio.StageRender, Frac: 0.9}
	if msg := m.nextEvent()(); msg.(eventMsg).Stage != studio.StageRender {
		t.Error("event not delivered")
	}

	close(events)
	if _, ok := m.nextEvent()().(closedMsg); !ok {
		t.Error("closed channel did not produce closedMsg")
	}
}
