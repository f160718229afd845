package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeindex/internal/extract"
	"codeindex/internal/extract/languages"
	"codeindex/internal/index"
	"codeindex/internal/store"
)

type fixture struct {
	root  string
	store *store.Store
	svc   *Service
}

func newFixture(t *testing.T, files map[string]string, emb Embedder) *fixture {
	t.Helper()
	return newFixtureAt(t, t.TempDir(), files, emb)
}

func newFixtureAt(t *testing.T, root string, files map[string]string, emb Embedder) *fixture {
	t.Helper()
	ctx := context.Background()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ix, err := index.NewIndexer(s, extract.New(languages.Default()), root, nil)
	require.NoError(t, err)
	for rel := range files {
		_, err := ix.IndexFile(ctx, filepath.Join(ix.Root(), filepath.FromSlash(rel)), nil)
		require.NoError(t, err)
	}
	svc, err := New(s, ix.Root(), emb, nil)
	require.NoError(t, err)
	return &fixture{root: ix.Root(), store: s, svc: svc}
}

func TestFindFilesRanksAndTruncates(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Services/Index.swift":       "class Index {}\n",
		"Services/Index/Index.swift": "class Nested {}\n",
		"README.md":                  "index.swift is the entry point\n",
		"Tools/index.swift.bak.md":   "notes\n",
	}, nil)

	got, err := f.svc.FindFiles(context.Background(), "index.swift", 10)
	require.NoError(t, err)
	var rels []string
	for _, m := range got {
		rels = append(rels, m.RelPath)
	}
	assert.Equal(t, []string{"Services/Index.swift", "Services/Index/Index.swift", "Tools/index.swift.bak.md"}, rels)
	assert.Equal(t, filepath.Join(f.root, "Services", "Index.swift"), got[0].Path)

	got, err = f.svc.FindFiles(context.Background(), "index.swift", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Services/Index.swift", got[0].RelPath)
}

func TestFindFilesMatchesOnlyRelativePath(t *testing.T) {
	files := map[string]string{"zz/index.go": "package zz\n"}
	for i := range 150 {
		files[fmt.Sprintf("a%03d.go", i)] = "package a\n"
	}
	f := newFixtureAt(t, filepath.Join(t.TempDir(), "code-index"), files, nil)

	got, err := f.svc.FindFiles(context.Background(), "index", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "zz/index.go", got[0].RelPath)
	assert.Equal(t, float64(basePrefix+pathContains), got[0].Score)
}

func TestFullTextSnippets(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.go": "package a\n\nfunc loadConfig() {}\n",
		"b.go": "package b\n",
	}, nil)

	hits, err := f.svc.FullText(context.Background(), "loadConfig", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, filepath.Join(f.root, "a.go"), hits[0].Path)
	assert.Contains(t, hits[0].Snippet, "[loadConfig]")
}

func TestSearchTextNarrowsWithFTS(t *testing.T) {
	long := "needle_value := " + strings.Repeat("x", 400)
	f := newFixture(t, map[string]string{
		"a.go": "package a\n\nfunc load() {\n\treturn loadConfig(path)\n}\n",
		"b.go": "package b\n\n// loadConfig is elsewhere\n",
		"c.go": "package c\n\nvar " + long + "\n",
		"d.go": "package d\n",
	}, nil)
	ctx := context.Background()

	got, err := f.svc.SearchText(ctx, "loadConfig(", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go:4: return loadConfig(path)"}, got)

	got, err = f.svc.SearchText(ctx, "loadConfig", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = f.svc.SearchText(ctx, "needle_value", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	line := strings.TrimPrefix(got[0], "c.go:3: ")
	assert.Equal(t, 240, len([]rune(line)))

	// No usable tokens falls back to listing every file.
	got, err = f.svc.SearchText(ctx, "()", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go:3: func load() {"}, got)
}

func TestSearchTokens(t *testing.T) {
	assert.Equal(t, []string{"loadConfig", "path"}, searchTokens("loadConfig(path)"))
	assert.Equal(t, []string{"seventh", "fifth", "sixth"}, searchTokens("a fifth sixth seventh ok"))
	assert.Empty(t, searchTokens("a.b(c)"))
	assert.Equal(t, `"foo" "bar"`, ftsQuery([]string{"foo", "bar"}))
}

func TestReadFileStaysInRoot(t *testing.T) {
	f := newFixture(t, map[string]string{"a.go": "package a\n"}, nil)
	ctx := context.Background()

	got, err := f.svc.ReadFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, "package a\n", got)

	_, err = f.svc.ReadFile(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	_, err = f.svc.ReadFile(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("s"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(f.root, "link.txt")))
	_, err = f.svc.ReadFile(ctx, "link.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestSymbolsFilesAndSummaries(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.py": "def foo():\n    pass\n",
		"b.py": "class Bar:\n    pass\n",
	}, nil)
	ctx := context.Background()

	syms, err := f.svc.SearchSymbolsWithPaths(ctx, "foo", 10)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, filepath.Join(f.root, "a.py"), syms[0].Path)

	info, err := f.svc.File(ctx, "b.py")
	require.NoError(t, err)
	assert.Equal(t, "python", info.Language)
	require.Len(t, info.Symbols, 1)
	assert.Equal(t, "Bar", info.Symbols[0].Name)

	require.NoError(t, f.store.MarkEnriched(ctx, info.ID, 77, "Defines Bar."))
	summary, err := f.svc.Summary(ctx, "b.py")
	require.NoError(t, err)
	assert.Equal(t, "Defines Bar.", summary)

	_, err = f.svc.Summary(ctx, "missing.py")
	assert.True(t, IsNotFound(err))

	files, err := f.svc.ListFiles(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	scoped, err := f.svc.ScopedStats(ctx, "", []string{"py"})
	require.NoError(t, err)
	assert.Equal(t, 2, scoped.Indexed)
	assert.Equal(t, 1, scoped.Enriched)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Symbols)
	assert.Equal(t, 1, st.SymbolsByKind["class"])
}

type fakeEmbedder struct {
	fail bool
}

func (fakeEmbedder) Model() string { return "fake" }

func (e fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("offline")
	}
	v := []float32{0, 0, 0}
	for _, r := range strings.ToLower(text) {
		switch r {
		case 't':
			v[0]++
		case 's':
			v[1]++
		case 'z':
			v[2]++
		}
	}
	return v, nil
}

func TestMemoriesWithAndWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, fakeEmbedder{})

	for i, content := range []string{"tttt tabs", "zzz sleep", "sss spaces"} {
		_, err := f.svc.AddMemory(ctx, store.MemoryEntry{ID: fmt.Sprint(i), Tier: store.TierLongTerm, Content: content})
		require.NoError(t, err)
	}
	got, err := f.svc.RecallMemories(ctx, "ttt", store.TierLongTerm, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tttt tabs", got[0].Content)

	plain, err := New(f.store, f.root, fakeEmbedder{fail: true}, nil)
	require.NoError(t, err)
	got, err = plain.RecallMemories(ctx, "SLEEP", "", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "zzz sleep", got[0].Content)

	list, err := plain.ListMemories(ctx, store.TierLongTerm, 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
