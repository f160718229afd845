package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"codeindex/internal/search"
	"codeindex/internal/store"
)

const searchLimit = 20

type searchModel struct {
	viewport  viewport.Model
	input     textinput.Model
	searching bool
	results   string
}

// resultsMsg is sent when a query completes.
type resultsMsg struct {
	query   string
	files   []search.FileMatch
	symbols []store.SymbolMatch
	err     error
}

func newSearchModel() searchModel {
	ti := textinput.New()
	ti.Placeholder = "File or symbol name..."
	ti.CharLimit = 200
	return searchModel{
		input:    ti,
		viewport: viewport.New(80, 20),
	}
}

func (m *searchModel) setSize(width, height int) {
	m.input.Width = max(width-4, 10)
	m.viewport.Width = width
	m.viewport.Height = max(height-4, 5)
}

func (m *searchModel) focus() tea.Cmd {
	return m.input.Focus()
}

func runSearch(cfg Config, query string) tea.Cmd {
	return func() tea.Msg {
		files, err := cfg.Search.FindFiles(cfg.Ctx, query, searchLimit)
		if err != nil {
			return resultsMsg{query: query, err: err}
		}
		syms, err := cfg.Search.SearchSymbolsWithPaths(cfg.Ctx, query, searchLimit)
		return resultsMsg{query: query, files: files, symbols: syms, err: err}
	}
}

func (m searchModel) Update(msg tea.Msg, cfg Config) (searchModel, tea.Cmd) {
	switch msg := msg.(type) {
	case resultsMsg:
		m.searching = false
		m.results = formatResults(cfg.Search.Root(), msg)
		m.viewport.SetContent(m.results)
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.searching {
				return m, nil
			}
			m.searching = true
			return m, runSearch(cfg, q)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func formatResults(root string, r resultsMsg) string {
	if r.err != nil {
		return errorStyle.Render("Error: " + r.err.Error())
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Files matching %q", r.query)) + "\n")
	if len(r.files) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	}
	for _, f := range r.files {
		fmt.Fprintf(&b, "  %s %s\n", pathStyle.Render(f.RelPath), dimStyle.Render(fmt.Sprintf("%.0f", f.Score)))
	}
	b.WriteString("\n" + titleStyle.Render("Symbols") + "\n")
	if len(r.symbols) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	}
	for _, s := range r.symbols {
		rel := strings.TrimPrefix(strings.TrimPrefix(s.Path, root), "/")
		fmt.Fprintf(&b, "  %s %s %s\n", selectedStyle.Render(s.Name), dimStyle.Render(s.Kind), pathStyle.Render(fmt.Sprintf("%s:%d", rel, s.LineStart)))
	}
	return b.String()
}

func (m searchModel) View() string {
	s := titleStyle.Render("  Search") + "\n"
	s += "  " + m.input.View() + "\n"
	if m.searching {
		s += dimStyle.Render("  searching...") + "\n"
	} else {
		s += m.viewport.View() + "\n"
	}
	s += helpStyle.Render("  enter search · ↑/↓ scroll · esc back")
	return s
}
