package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"codeindex/internal/events"
	"codeindex/internal/index"
	"codeindex/internal/search"
	"codeindex/internal/store"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewStatus ViewState = iota
	ViewProgress
	ViewSearch
)

// Reindexer starts a full project reindex.
type Reindexer interface {
	ReindexProject(root string) (<-chan struct{}, error)
}

// Enricher runs one enrichment pass.
type Enricher interface {
	Run(ctx context.Context) (index.EnrichStats, error)
}

// Searcher is the read surface the screens query.
type Searcher interface {
	Root() string
	Stats(ctx context.Context) (store.IndexStats, error)
	FindFiles(ctx context.Context, query string, limit int) ([]search.FileMatch, error)
	SearchSymbolsWithPaths(ctx context.Context, nameLike string, limit int) ([]store.SymbolMatch, error)
}

// Config holds what the CLI layer wires in. Enricher may be nil.
type Config struct {
	Ctx       context.Context
	Reindexer Reindexer
	Enricher  Enricher
	Search    Searcher
	Events    <-chan events.Event
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	status   welcomeModel
	progress progressModel
	search   searchModel
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	return Model{
		state:  ViewStatus,
		config: cfg,
		search: newSearchModel(),
	}
}

// eventMsg carries one published index event into the program.
type eventMsg events.Event

// busClosedMsg is sent once the event channel closes.
type busClosedMsg struct{}

func waitEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadStats(m.config), waitEvent(m.config.Events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.setWidth(msg.Width)
		m.search.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewSearch {
				return m, tea.Quit
			}
		case "esc":
			if m.state != ViewStatus && !m.progress.running() {
				m.state = ViewStatus
				return m, loadStats(m.config)
			}
		}

	case eventMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, tea.Batch(cmd, waitEvent(m.config.Events))

	case busClosedMsg:
		return m, nil

	case statsMsg:
		m.status = m.status.Update(msg)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case ViewStatus:
		key, ok := msg.(tea.KeyMsg)
		if !ok {
			return m, nil
		}
		switch key.String() {
		case "r":
			m.state = ViewProgress
			m.progress = newProgressModel("Reindexing project", m.width)
			return m, tea.Batch(m.progress.spinner.Tick, runReindex(m.config))
		case "e":
			if m.config.Enricher == nil {
				return m, nil
			}
			m.state = ViewProgress
			m.progress = newProgressModel("Enriching files", m.width)
			return m, tea.Batch(m.progress.spinner.Tick, runEnrich(m.config))
		case "/", "s":
			m.state = ViewSearch
			return m, m.search.focus()
		}

	case ViewProgress:
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case ViewSearch:
		m.search, cmd = m.search.Update(msg, m.config)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case ViewStatus:
		return m.status.View(m.width, m.config.Search.Root(), m.config.Enricher != nil)
	case ViewProgress:
		return m.progress.View()
	case ViewSearch:
		return m.search.View()
	}
	return ""
}

// Run starts the TUI program and blocks until it exits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithContext(cfg.Ctx))
	_, err := p.Run()
	return err
}
