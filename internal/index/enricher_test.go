package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeindex/internal/events"
	"codeindex/internal/store"
)

type fakeScorer struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeScorer) Score(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(prompt)
}

func (f *fakeScorer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func TestEnricherIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{
		"good.go":   "package good\n\n// Good does things.\nfunc Good() {}\n",
		"bad.go":    "package bad\nfunc Bad() {}\n",
		"readme.md": "# not enrichable\n",
	})
	defer h.store.Close()

	scorer := &fakeScorer{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "bad.go") {
			return "", errors.New("model unavailable")
		}
		return `{"score": 140, "summary": "Declares Good."}`, nil
	}}
	rec := newRecorder()
	e := NewEnricher(h.indexer, h.store, scorer, rec, nil, EnricherOptions{})

	stats, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Enriched)
	assert.Equal(t, 1, stats.Failed)

	good, err := h.store.Resource(ctx, h.path("good.go"))
	require.NoError(t, err)
	assert.True(t, good.AIEnriched)
	assert.Equal(t, 100.0, good.QualityScore)
	assert.Equal(t, "Declares Good.", good.Summary)
	assert.Contains(t, good.QualityDetails, `"lines"`)

	bad, err := h.store.Resource(ctx, h.path("bad.go"))
	require.NoError(t, err)
	assert.False(t, bad.AIEnriched)
	assert.NotEmpty(t, bad.QualityDetails, "heuristic result persists even when the AI call fails")

	assert.Equal(t, 1, rec.count(events.AIEnrichmentStarted))
	assert.Equal(t, 1, rec.count(events.AIEnrichmentCompleted))

	// A second pass only retries the failed file.
	stats, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 3, scorer.calls())
}

func TestEnricherTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{"slow.py": "def slow():\n    pass\n"})
	defer h.store.Close()

	e := NewEnricher(h.indexer, h.store, scorerFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), nil, nil, EnricherOptions{Timeout: 20 * time.Millisecond})

	stats, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestEnricherCancel(t *testing.T) {
	h := newHarness(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
	})
	defer h.store.Close()

	var e *Enricher
	e = NewEnricher(h.indexer, h.store, scorerFunc(func(context.Context, string) (string, error) {
		e.Cancel()
		return `{"score": 50}`, nil
	}), nil, nil, EnricherOptions{})

	stats, err := e.Run(context.Background())
	assert.ErrorIs(t, err, store.ErrSuperseded)
	assert.Zero(t, stats.Enriched)
}

type scorerFunc func(ctx context.Context, prompt string) (string, error)

func (f scorerFunc) Score(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }
