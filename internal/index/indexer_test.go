package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeindex/internal/store"
)

func TestResourceIDIsStable(t *testing.T) {
	a := ResourceID("/p/a.go")
	assert.Equal(t, a, ResourceID("/p/./a.go"))
	assert.NotEqual(t, a, ResourceID("/p/b.go"))
	assert.Len(t, a, 36)
}

func TestIndexFileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{"a.py": "def foo():\n    pass\n"})
	defer h.store.Close()

	res, err := h.indexer.IndexFile(ctx, h.path("a.py"), nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Symbols)

	id := ResourceID(h.path("a.py"))
	before, err := h.store.ResourceState(ctx, id)
	require.NoError(t, err)
	symsBefore, err := h.store.SymbolsForResource(ctx, id)
	require.NoError(t, err)

	res, err = h.indexer.IndexFile(ctx, h.path("a.py"), func() bool {
		t.Fatal("an unchanged file must not reach the write")
		return false
	})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	after, err := h.store.ResourceState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	symsAfter, err := h.store.SymbolsForResource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, symsBefore, symsAfter)
}

func TestIndexFileReindexesChangedContent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{"a.py": "def foo():\n    pass\n"})
	defer h.store.Close()

	_, err := h.indexer.IndexFile(ctx, h.path("a.py"), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(h.path("a.py"), []byte("def foo():\n    pass\ndef bar():\n    pass\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(h.path("a.py"), future, future))

	res, err := h.indexer.IndexFile(ctx, h.path("a.py"), nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Symbols)
}

func TestIndexFileRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{"ok.go": "package ok\n"})
	defer h.store.Close()
	require.NoError(t, os.WriteFile(h.path("bin.go"), []byte{0xff, 0xfe, 0x00}, 0o644))

	_, err := h.indexer.IndexFile(ctx, h.path("bin.go"), nil)
	assert.ErrorIs(t, err, ErrUnindexable)
	_, err = h.store.ResourceState(ctx, ResourceID(h.path("bin.go")))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.indexer.IndexFile(ctx, h.path("missing.go"), nil)
	assert.ErrorIs(t, err, ErrUnindexable)

	_, err = h.indexer.IndexFile(ctx, h.path("../escape.go"), nil)
	assert.ErrorIs(t, err, ErrOutsideRoot)

	outside := filepath.Join(t.TempDir(), "secret.go")
	require.NoError(t, os.WriteFile(outside, []byte("package secret\n"), 0o644))
	require.NoError(t, os.Symlink(outside, h.path("link.go")))
	_, err = h.indexer.IndexFile(ctx, h.path("link.go"), nil)
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestIndexFileGuardRejectsWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{"a.go": "package a\nfunc A() {}\n"})
	defer h.store.Close()

	_, err := h.indexer.IndexFile(ctx, h.path("a.go"), func() bool { return false })
	require.ErrorIs(t, err, store.ErrSuperseded)
	_, err = h.store.ResourceState(ctx, ResourceID(h.path("a.go")))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRemoveFileHandlesDirectories(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]string{
		"pkg/a.go": "package pkg\nfunc A() {}\n",
		"pkg/b.go": "package pkg\nfunc B() {}\n",
		"main.go":  "package main\nfunc main() {}\n",
	})
	defer h.store.Close()
	for _, rel := range []string{"pkg/a.go", "pkg/b.go", "main.go"} {
		_, err := h.indexer.IndexFile(ctx, h.path(rel), nil)
		require.NoError(t, err)
	}

	require.NoError(t, h.indexer.RemoveFile(ctx, h.path("pkg")))
	paths, err := h.store.IndexedPathsUnder(ctx, h.root)
	require.NoError(t, err)
	assert.Equal(t, []string{h.path("main.go")}, paths)

	assert.ErrorIs(t, h.indexer.RemoveFile(ctx, "/elsewhere/x.go"), ErrOutsideRoot)
}
