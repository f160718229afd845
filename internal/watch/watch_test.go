package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codeindex/internal/events"
	"codeindex/internal/walker"
)

func newWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".index"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	w, err := New(root, Options{
		Excluder:   walker.NewExcluder(walker.DefaultExcludes),
		PrivateDir: ".index",
	}, nil)
	require.NoError(t, err)
	return w, w.root
}

// waitFor drains events until one matches or the deadline passes.
func waitFor(t *testing.T, w *Watcher, match func(events.FileEvent) bool) events.FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			require.True(t, ok, "event stream closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func is(op events.FileOp, path string) func(events.FileEvent) bool {
	return func(ev events.FileEvent) bool { return ev.Op == op && ev.Path == path }
}

func TestWatcherReportsFileChanges(t *testing.T) {
	defer goleak.VerifyNone(t)
	w, root := newWatcher(t)
	defer w.Close()

	a := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(a, []byte("package a\n"), 0o644))
	waitFor(t, w, is(events.FileCreated, a))

	require.NoError(t, os.WriteFile(a, []byte("package a\n\nfunc A() {}\n"), 0o644))
	waitFor(t, w, is(events.FileModified, a))

	b := filepath.Join(root, "b.go")
	require.NoError(t, os.Rename(a, b))
	ev := waitFor(t, w, is(events.FileRenamed, b))
	assert.Equal(t, a, ev.OldPath)

	require.NoError(t, os.Remove(b))
	waitFor(t, w, is(events.FileDeleted, b))
}

func TestWatcherRenameOutOfTreeIsDelete(t *testing.T) {
	defer goleak.VerifyNone(t)
	w, root := newWatcher(t)
	defer w.Close()

	a := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(a, []byte("package a\n"), 0o644))
	waitFor(t, w, is(events.FileCreated, a))

	require.NoError(t, os.Rename(a, filepath.Join(t.TempDir(), "a.go")))
	waitFor(t, w, is(events.FileDeleted, a))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	defer goleak.VerifyNone(t)
	w, root := newWatcher(t)
	defer w.Close()

	staged := filepath.Join(t.TempDir(), "pkg")
	require.NoError(t, os.MkdirAll(staged, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staged, "moved.go"), []byte("package pkg\n"), 0o644))

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Rename(staged, dir))
	waitFor(t, w, is(events.FileCreated, filepath.Join(dir, "moved.go")))

	later := filepath.Join(dir, "later.go")
	require.NoError(t, os.WriteFile(later, []byte("package pkg\n"), 0o644))
	waitFor(t, w, is(events.FileCreated, later))
}

func TestWatcherSkipsHiddenExcludedAndPrivate(t *testing.T) {
	w, root := newWatcher(t)

	assert.True(t, w.skipDir(filepath.Join(root, ".index")))
	assert.True(t, w.skipDir(filepath.Join(root, ".git")))
	assert.True(t, w.skipDir(filepath.Join(root, "node_modules")))
	assert.True(t, w.skipDir(filepath.Join(root, "src", "vendor")))
	assert.False(t, w.skipDir(filepath.Join(root, "src")))
	assert.False(t, w.skipDir(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644))
	visible := filepath.Join(root, "visible.go")
	require.NoError(t, os.WriteFile(visible, []byte("package v\n"), 0o644))
	ev := waitFor(t, w, func(events.FileEvent) bool { return true })
	assert.Equal(t, visible, ev.Path)

	require.NoError(t, w.Close())
	_, ok := <-w.Events()
	for ok {
		_, ok = <-w.Events()
	}
	assert.NoError(t, w.Close())
}
