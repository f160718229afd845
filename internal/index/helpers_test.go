package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codeindex/internal/events"
	"codeindex/internal/extract"
	"codeindex/internal/extract/languages"
	"codeindex/internal/store"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1)}
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) find(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// waitFor blocks until at least n events of kind were published.
func (r *recorder) waitFor(t *testing.T, kind events.Kind, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for r.count(kind) < n {
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events (got %d)", n, kind, r.count(kind))
		}
	}
}

// gatedStore blocks the first WriteIndexed call until released and counts
// writes that reached the database.
type gatedStore struct {
	*store.Store
	gate     atomic.Bool
	blocked  chan struct{}
	release  chan struct{}
	writes   atomic.Int32
	rejected atomic.Int32
}

func (g *gatedStore) WriteIndexed(ctx context.Context, guard func() bool, r store.Resource, content string, syms []store.Symbol) error {
	if g.gate.CompareAndSwap(true, false) {
		close(g.blocked)
		<-g.release
		ctx = context.WithoutCancel(ctx)
	}
	err := g.Store.WriteIndexed(ctx, guard, r, content, syms)
	switch {
	case errors.Is(err, store.ErrSuperseded):
		g.rejected.Add(1)
	case err == nil:
		g.writes.Add(1)
	}
	return err
}

type harness struct {
	root    string
	store   *store.Store
	indexer *Indexer
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	ix, err := NewIndexer(s, extract.New(languages.Default()), root, nil)
	require.NoError(t, err)
	return &harness{root: ix.Root(), store: s, indexer: ix}
}

// indexerOn returns an indexer for the harness root that writes through s.
func (h *harness) indexerOn(t *testing.T, s Store) *Indexer {
	t.Helper()
	ix, err := NewIndexer(s, extract.New(languages.Default()), h.root, nil)
	require.NoError(t, err)
	return ix
}

func (h *harness) path(rel string) string {
	return filepath.Join(h.root, filepath.FromSlash(rel))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for task")
	}
}

func removeFile(path string) error { return os.Remove(path) }

func renameFile(from, to string) error { return os.Rename(from, to) }
