package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestWalkSkipsHiddenPrivateAndForeignExtensions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"a.go", "b.py", "image.png",
		".hidden.go", ".git/config.go",
		".index/index.go", "idx/keep.go",
		"src/deep/c.swift",
	)

	files, err := Walk(context.Background(), root, Options{PrivateDir: ".index"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.py", "idx/keep.go", "src/deep/c.swift"}, relAll(t, root, files))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f))
	}
}

func TestWalkExcludesAndRestores(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "app/main.go", "app/gen/api.go", "node_modules/pkg/index.js", "web/app.min.js", "web/app.js")

	cases := []struct {
		pattern string
		gone    string
	}{
		{"gen", "app/gen/api.go"},
		{"*.min.js", "web/app.min.js"},
		{"app/gen", "app/gen/api.go"},
		{"**/gen/*.go", "app/gen/api.go"},
		{"node_modules", "node_modules/pkg/index.js"},
	}
	for _, tc := range cases {
		t.Run(tc.pattern, func(t *testing.T) {
			files, err := Walk(context.Background(), root, Options{Excluder: NewExcluder([]string{tc.pattern})})
			require.NoError(t, err)
			assert.NotContains(t, relAll(t, root, files), tc.gone)

			files, err = Walk(context.Background(), root, Options{Excluder: NewExcluder(nil)})
			require.NoError(t, err)
			assert.Contains(t, relAll(t, root, files), tc.gone)
		})
	}
}

func TestWalkSkipsLargeFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.go"), make([]byte, 64), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "small.go"), make([]byte, 8), 0o644))

	files, err := Walk(context.Background(), root, Options{MaxFileSize: 16})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.go"}, relAll(t, root, files))
}

func TestWalkHonorsContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.go")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Walk(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExcluderRules(t *testing.T) {
	e := NewExcluder([]string{"build", "*.snap", "docs/api", "**/testdata/**"})

	cases := map[string]bool{
		"build/out.go":            true,
		"src/build/x.go":          true,
		"builder/x.go":            false,
		"ui/__snapshots__/a.snap": true,
		"docs/api/index.md":       true,
		"docs/guide.md":           false,
		"pkg/testdata/in.txt":     true,
		"pkg/data/in.txt":         false,
	}
	for rel, want := range cases {
		assert.Equal(t, want, e.Excluded(rel), rel)
	}

	p, ok := e.Match("src/build/x.go")
	require.True(t, ok)
	assert.Equal(t, "build", p)
}

func TestLoadExcludesCreatesTemplateAndMerges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".index", "exclude")

	got, err := LoadExcludes(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultExcludes, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Exclude patterns")

	custom := string(data) + "fixtures\nnode_modules\n  \n# comment\nfixtures\n"
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	got, err = LoadExcludes(path)
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, DefaultExcludes...), "fixtures"), got)
}

func TestMergeExcludesOrder(t *testing.T) {
	got := MergeExcludes([]string{"a", "b"}, []string{"c", "a", "d", "c"})
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}
