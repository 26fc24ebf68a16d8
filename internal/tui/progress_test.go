package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModel_ProgressDisplay(t *testing.T) {
	m := NewModel()

	result, _ := m.Update(ProgressMsg{Entity: "customers", Done: 3, Total: 10, Level: 0})
	m = result.(Model)
	result, _ = m.Update(ProgressMsg{Entity: "orders", Done: 1, Total: 5, Level: 1})
	m = result.(Model)

	v := m.View()
	if !strings.Contains(v, "customers") || !strings.Contains(v, "orders") {
		t.Errorf("view missing entities:\n%s", v)
	}
	if !strings.Contains(v, "3 /") {
		t.Errorf("view missing counts:\n%s", v)
	}
}

func TestModel_Complete(t *testing.T) {
	m := NewModel()
	result, cmd := m.Update(DoneMsg{TotalRows: 42})
	m = result.(Model)
	if cmd == nil {
		t.Error("done should quit")
	}
	if !strings.Contains(m.View(), "42 rows") {
		t.Errorf("view missing total:\n%s", m.View())
	}
}

func TestModel_Failure(t *testing.T) {
	m := NewModel()
	result, _ := m.Update(DoneMsg{Err: errors.New("model unavailable")})
	m = result.(Model)
	if !strings.Contains(m.View(), "model unavailable") {
		t.Errorf("view missing error:\n%s", m.View())
	}
	if m.Err() == nil {
		t.Error("Err() should surface the failure")
	}
}

func TestModel_Cancel(t *testing.T) {
	m := NewModel()
	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = result.(Model)
	if !m.Cancelled() {
		t.Error("q should cancel")
	}
	if cmd == nil {
		t.Error("cancel should quit")
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := renderProgressBar(50, 20)
	if !strings.HasPrefix(bar, "[") || !strings.HasSuffix(bar, "]") {
		t.Errorf("bar = %q", bar)
	}
	if strings.Count(bar, "=") != 10 {
		t.Errorf("expected half-filled bar, got %q", bar)
	}
}
