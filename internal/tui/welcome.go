package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"codeindex/internal/store"
)

type welcomeModel struct {
	stats store.IndexStats
	err   error
	ready bool // true once the first stats load has completed
}

// statsMsg is sent after loading index statistics.
type statsMsg struct {
	stats store.IndexStats
	err   error
}

func loadStats(cfg Config) tea.Cmd {
	return func() tea.Msg {
		st, err := cfg.Search.Stats(cfg.Ctx)
		return statsMsg{stats: st, err: err}
	}
}

func (m welcomeModel) Update(msg statsMsg) welcomeModel {
	m.stats = msg.stats
	m.err = msg.err
	m.ready = true
	return m
}

func (m welcomeModel) View(width int, root string, canEnrich bool) string {
	s := "\n"
	s += titleStyle.Render("  ◆ codeindex") + "\n"
	s += subtitleStyle.Render("  "+root) + "\n\n"

	switch {
	case !m.ready:
		s += dimStyle.Render("  Checking index...") + "\n"
		return s
	case m.err != nil:
		s += errorStyle.Render("  Error: "+m.err.Error()) + "\n"
	case m.stats.Resources == 0:
		s += warnStyle.Render("  ✗ Nothing indexed yet") + "\n"
	default:
		s += successStyle.Render("  ✓ Index ready") + "\n"
		s += RenderMarkdown(StatsMarkdown(root, m.stats), width)
	}

	help := "  r reindex · / search · q quit"
	if canEnrich {
		help = "  r reindex · e enrich · / search · q quit"
	}
	s += "\n" + helpStyle.Render(help) + "\n"
	return s
}
