package tui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"codeindex/internal/events"
	"codeindex/internal/index"
)

type progressModel struct {
	spinner   spinner.Model
	bar       progress.Model
	active    bool
	phase     string
	processed int
	total     int
	current   string
	started   time.Time
	done      bool
	summary   string
	err       error
}

func newProgressModel(phase string, width int) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	m := progressModel{
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		active:  true,
		phase:   phase,
		started: time.Now(),
	}
	m.setWidth(width)
	return m
}

func (m *progressModel) setWidth(width int) {
	m.bar.Width = max(min(width-8, 80), 10)
}

func (m progressModel) running() bool { return m.active && !m.done }

// reindexDoneMsg is sent when a reindex started from the TUI finishes.
type reindexDoneMsg struct {
	err error
}

// enrichDoneMsg is sent when an enrichment pass finishes.
type enrichDoneMsg struct {
	stats index.EnrichStats
	err   error
}

func runReindex(cfg Config) tea.Cmd {
	return func() tea.Msg {
		done, err := cfg.Reindexer.ReindexProject(cfg.Search.Root())
		if err != nil {
			return reindexDoneMsg{err: err}
		}
		select {
		case <-done:
		case <-cfg.Ctx.Done():
			return reindexDoneMsg{err: cfg.Ctx.Err()}
		}
		return reindexDoneMsg{}
	}
}

func runEnrich(cfg Config) tea.Cmd {
	return func() tea.Msg {
		st, err := cfg.Enricher.Run(cfg.Ctx)
		return enrichDoneMsg{stats: st, err: err}
	}
}

func (m progressModel) Update(msg tea.Msg) (progressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		if !m.running() {
			return m, nil
		}
		switch msg.Kind {
		case events.IndexingStarted, events.AIEnrichmentStarted:
			m.processed, m.total = 0, msg.Total
		case events.IndexingProgress, events.AIEnrichmentProgress:
			m.processed, m.total, m.current = msg.Processed, msg.Total, msg.CurrentFile
		}
		if m.total > 0 {
			return m, m.bar.SetPercent(float64(m.processed) / float64(m.total))
		}
		return m, nil
	case reindexDoneMsg:
		m.done = true
		m.err = msg.err
		m.summary = fmt.Sprintf("%d files in %s", m.total, time.Since(m.started).Round(time.Millisecond))
		return m, nil
	case enrichDoneMsg:
		m.done = true
		m.err = msg.err
		m.summary = fmt.Sprintf("%d enriched, %d unchanged, %d failed of %d in %s",
			msg.stats.Enriched, msg.stats.Skipped, msg.stats.Failed, msg.stats.Total, msg.stats.Duration.Round(time.Millisecond))
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	s := "\n"
	s += titleStyle.Render("  "+m.phase) + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n"
			s += dimStyle.Render("  "+m.summary) + "\n\n"
		} else {
			s += successStyle.Render("  ✓ Done: "+m.summary) + "\n\n"
		}
		s += helpStyle.Render("  esc back · q quit") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		s += "  " + m.bar.View() + "\n"
		s += fmt.Sprintf("  %d / %d files\n", m.processed, m.total)
	}
	if m.current != "" {
		s += dimStyle.Render("  "+filepath.Base(m.current)) + "\n"
	}
	s += "\n" + statusBarStyle.Render("running · ctrl+c to abort") + "\n"
	return s
}
