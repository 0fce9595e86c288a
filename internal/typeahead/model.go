package typeahead

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kimu90/saved-ai/internal/search"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	ghostStyle  = lipgloss.NewStyle().Faint(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	metaStyle   = lipgloss.NewStyle().Faint(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// PredictionMsg carries a completion from the session into the UI loop.
type PredictionMsg Prediction

// ResultsMsg carries search results into the UI loop.
type ResultsMsg struct {
	Query   string
	Results []search.SearchResult
}

// ErrorMsg carries a failed search into the UI loop.
type ErrorMsg struct {
	Err error
}

// Model is the terminal UI state. The session does the network work;
// the model only reacts to keystrokes and session messages.
type Model struct {
	session *Session
	input   textinput.Model
	width   int

	pending    Prediction
	lastValue  string
	results    []search.SearchResult
	resultsFor string
	errMsg     string
	searching  bool
}

// NewModel creates the UI bound to a session.
func NewModel(session *Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Search publications"
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		session: session,
		input:   ti,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case PredictionMsg:
		// Apply only while the input the prediction answered is still
		// what the user sees.
		if msg.Input == m.input.Value() {
			m.pending = Prediction(msg)
		}
		return m, nil

	case ResultsMsg:
		m.searching = false
		m.errMsg = ""
		m.results = msg.Results
		m.resultsFor = msg.Query
		return m, nil

	case ErrorMsg:
		m.searching = false
		m.errMsg = "Search failed. Please try again."
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.session.Stop()
			return m, tea.Quit
		}

		switch msg.String() {
		case "tab", "right":
			if m.extension() != "" {
				m.accept()
				return m, nil
			}
			// no completion shown, let the input handle the key

		case "esc":
			if m.extension() != "" {
				m.pending = Prediction{}
				return m, nil
			}
			m.session.Stop()
			return m, tea.Quit

		case "enter":
			m.accept()
			if m.session.Submit(m.input.Value()) {
				m.searching = true
				m.errMsg = ""
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != m.lastValue {
		m.lastValue = value
		m.pending = Prediction{} // typing invalidates the shown completion
		m.session.Input(value)
	}
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Saved AI Search"))
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	if ext := m.extension(); ext != "" {
		b.WriteString(ghostStyle.Render(ext))
	}
	b.WriteString("\n")

	switch {
	case m.errMsg != "":
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	case m.searching:
		b.WriteString(statusStyle.Render("Searching..."))
		b.WriteString("\n")
	case m.resultsFor != "":
		b.WriteString(statusStyle.Render(fmt.Sprintf("%d results for %q", len(m.results), m.resultsFor)))
		b.WriteString("\n")
	}

	for i, r := range m.results {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render(fmt.Sprintf("%d. %s", i+1, r.Title)))
		b.WriteString(scoreStyle.Render(fmt.Sprintf("  %.2f", r.Score)))
		b.WriteString("\n")
		if meta := resultMeta(r); meta != "" {
			b.WriteString(metaStyle.Render(meta))
			b.WriteString("\n")
		}
		if r.Summary != "" {
			b.WriteString(truncate(r.Summary, m.width))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/right accept, esc dismiss, enter search, ctrl+c quit"))
	b.WriteString("\n")
	return b.String()
}

// extension returns the not-yet-typed tail of the pending completion,
// or "" when none applies to the current input.
func (m Model) extension() string {
	if m.pending.Completion == "" || m.pending.Input != m.input.Value() {
		return ""
	}
	return m.pending.Completion[len(m.pending.Input):]
}

// accept replaces the input with the full completion and asks the
// session for predictions on the longer text.
func (m *Model) accept() {
	if m.extension() == "" {
		return
	}
	full := m.pending.Completion
	m.input.SetValue(full)
	m.input.CursorEnd()
	m.lastValue = full
	m.pending = Prediction{}
	m.session.Input(full)
}

func resultMeta(r search.SearchResult) string {
	parts := make([]string, 0, 2)
	if len(r.Authors) > 0 {
		parts = append(parts, strings.Join(r.Authors, ", "))
	}
	if r.DOI != "" {
		parts = append(parts, "doi:"+r.DOI)
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, width int) string {
	if width <= 0 {
		width = 80
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
