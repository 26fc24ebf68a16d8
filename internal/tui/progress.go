// Package tui renders live generation progress in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fabrica/fabrica/internal/generate"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// ProgressMsg carries one coordinator progress event into the model.
type ProgressMsg generate.Event

// DoneMsg signals the run has finished.
type DoneMsg struct {
	Err       error
	TotalRows int
}

type entityProgress struct {
	name  string
	done  int
	total int
}

// Model displays per-entity progress bars for a generation run. Entities
// appear in dependency order as their levels start.
type Model struct {
	entities  []entityProgress
	index     map[string]int
	spinner   spinner.Model
	finished  bool
	cancelled bool
	err       error
	totalRows int
	width     int
}

// NewModel creates a progress model.
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = highlightStyle
	return Model{
		index:   make(map[string]int),
		spinner: s,
		width:   100,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			if m.finished {
				return m, tea.Quit
			}
		}
		return m, nil

	case ProgressMsg:
		i, ok := m.index[msg.Entity]
		if !ok {
			i = len(m.entities)
			m.index[msg.Entity] = i
			m.entities = append(m.entities, entityProgress{name: msg.Entity})
		}
		m.entities[i].done = msg.Done
		m.entities[i].total = msg.Total
		return m, nil

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		m.totalRows = msg.TotalRows
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Generating data"))
	b.WriteString("\n\n")

	if len(m.entities) == 0 && !m.finished {
		b.WriteString(fmt.Sprintf("  %s waiting for the first level to start...\n", m.spinner.View()))
		return b.String()
	}

	barWidth := m.width - 50
	for _, e := range m.entities {
		pct := 0.0
		if e.total > 0 {
			pct = float64(e.done) / float64(e.total) * 100
		}
		icon := highlightStyle.Render(">>")
		if e.done >= e.total && e.total > 0 {
			icon = successStyle.Render("OK")
		}
		bar := renderProgressBar(pct, barWidth)
		b.WriteString(fmt.Sprintf("  %s %-24s %s %4d / %d\n", icon, e.name, bar, e.done, e.total))
	}

	switch {
	case m.finished && m.err != nil:
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("  Generation failed: %v", m.err)))
		b.WriteString("\n")
	case m.finished:
		b.WriteString("\n")
		b.WriteString(successStyle.Render(fmt.Sprintf("  Done: %d rows generated", m.totalRows)))
		b.WriteString("\n")
	default:
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  q: cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

// Cancelled reports whether the user aborted the run.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Err returns the run error, if any.
func (m Model) Err() error {
	return m.err
}

func renderProgressBar(pct float64, width int) string {
	if width < 10 {
		width = 10
	}
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	empty := width - filled
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", empty) + "]"
}
