package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeindex/internal/events"
	"codeindex/internal/index"
	"codeindex/internal/search"
	"codeindex/internal/store"
)

type fakeSearch struct{}

func (fakeSearch) Root() string { return "/proj" }

func (fakeSearch) Stats(context.Context) (store.IndexStats, error) {
	return store.IndexStats{Resources: 3, Symbols: 7, Languages: map[string]int{"go": 2, "python": 1}}, nil
}

func (fakeSearch) FindFiles(_ context.Context, q string, _ int) ([]search.FileMatch, error) {
	return []search.FileMatch{{Path: "/proj/" + q + ".go", RelPath: q + ".go", Score: 1100}}, nil
}

func (fakeSearch) SearchSymbolsWithPaths(_ context.Context, q string, _ int) ([]store.SymbolMatch, error) {
	return []store.SymbolMatch{{Symbol: store.Symbol{Name: q, Kind: "function", LineStart: 4}, Path: "/proj/pkg/x.go"}}, nil
}

type fakeReindexer struct{ roots []string }

func (f *fakeReindexer) ReindexProject(root string) (<-chan struct{}, error) {
	f.roots = append(f.roots, root)
	ch := make(chan struct{})
	close(ch)
	return ch, nil
}

type fakeEnricher struct{}

func (fakeEnricher) Run(context.Context) (index.EnrichStats, error) {
	return index.EnrichStats{Total: 2, Enriched: 1, Skipped: 1}, nil
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStatusScreenLoadsStats(t *testing.T) {
	cfg := Config{Reindexer: &fakeReindexer{}, Search: fakeSearch{}}
	m := New(cfg)
	assert.Contains(t, m.View(), "Checking index")

	msg := loadStats(m.config)()
	m, _ = update(t, m, msg)
	view := m.View()
	assert.Contains(t, view, "Index ready")
	assert.NotContains(t, view, "e enrich")
}

func TestReindexFromStatusScreen(t *testing.T) {
	ri := &fakeReindexer{}
	m := New(Config{Reindexer: ri, Search: fakeSearch{}})

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	assert.Equal(t, ViewProgress, m.state)
	assert.True(t, m.progress.running())

	m, _ = update(t, m, eventMsg(events.Event{Kind: events.IndexingStarted, Total: 4}))
	m, _ = update(t, m, eventMsg(events.Event{Kind: events.IndexingProgress, Processed: 2, Total: 4, CurrentFile: "/proj/a.go"}))
	assert.Equal(t, 2, m.progress.processed)
	assert.Contains(t, m.View(), "2 / 4 files")
	assert.Contains(t, m.View(), "a.go")

	// esc is ignored while running.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewProgress, m.state)

	done := runReindex(m.config)()
	assert.Equal(t, []string{"/proj"}, ri.roots)
	m, _ = update(t, m, done)
	assert.Contains(t, m.View(), "Done")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewStatus, m.state)
}

func TestEnrichFromStatusScreen(t *testing.T) {
	m := New(Config{Reindexer: &fakeReindexer{}, Enricher: fakeEnricher{}, Search: fakeSearch{}})
	m, _ = update(t, m, key("e"))
	require.Equal(t, ViewProgress, m.state)
	m, _ = update(t, m, runEnrich(m.config)())
	assert.Contains(t, m.View(), "1 enriched, 1 unchanged, 0 failed of 2")
}

func TestSearchScreen(t *testing.T) {
	m := New(Config{Reindexer: &fakeReindexer{}, Search: fakeSearch{}})
	m, _ = update(t, m, key("/"))
	require.Equal(t, ViewSearch, m.state)

	for _, r := range "load" {
		m, _ = update(t, m, key(string(r)))
	}
	// q types into the query instead of quitting.
	m, cmd := update(t, m, key("q"))
	assert.Equal(t, "loadq", m.search.input.Value())
	if cmd != nil {
		_, quit := cmd().(tea.QuitMsg)
		assert.False(t, quit)
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.search.results, "loadq.go")
	assert.Contains(t, m.search.results, "pkg/x.go:4")
}

func TestStatsMarkdown(t *testing.T) {
	md := StatsMarkdown("/proj", store.IndexStats{
		Resources:     3,
		Languages:     map[string]int{"go": 1, "python": 2},
		SymbolsByKind: map[string]int{"function": 5},
		DatabaseBytes: 3 << 20,
	})
	assert.Contains(t, md, "| Files | 3 |")
	assert.Contains(t, md, "| Database size | 3.0 MiB |")
	assert.Less(t, strings.Index(md, "python"), strings.Index(md, "| go |"))
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
}
