package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeindex/internal/extract"
	"codeindex/internal/extract/languages"
	"codeindex/internal/index"
	"codeindex/internal/search"
	"codeindex/internal/store"
)

func newTestService(t *testing.T) *search.Service {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	files := map[string]string{
		"svc/index.go": "package svc\n\nfunc Reindex() error {\n\treturn nil\n}\n",
		"README.md":    "# demo\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ix, err := index.NewIndexer(st, extract.New(languages.Default()), root, nil)
	require.NoError(t, err)
	for rel := range files {
		_, err := ix.IndexFile(ctx, rel, nil)
		require.NoError(t, err)
	}
	svc, err := search.New(st, ix.Root(), nil, nil)
	require.NoError(t, err)
	return svc
}

func call(t *testing.T, h mcpserver.ToolHandlerFunc, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestMCPReadTools(t *testing.T) {
	svc := newTestService(t)

	out, isErr := call(t, makeSearchSymbolsHandler(svc), map[string]any{"query": "Reindex"})
	assert.False(t, isErr)
	assert.Equal(t, "svc/index.go:3-5 function Reindex\n", out)

	out, _ = call(t, makeFindFilesHandler(svc), map[string]any{"query": "index.go", "limit": 5})
	assert.Contains(t, out, "svc/index.go (score 1")

	out, _ = call(t, makeSearchTextHandler(svc), map[string]any{"pattern": "return nil"})
	assert.Equal(t, "svc/index.go:4: return nil", out)

	out, _ = call(t, makeListFilesHandler(svc), map[string]any{})
	assert.Contains(t, out, "- svc/index.go")
	assert.Contains(t, out, "- README.md")

	out, _ = call(t, makeFileSummaryHandler(svc), map[string]any{"path": "svc/index.go"})
	assert.Contains(t, out, "**Language:** go")
	assert.Contains(t, out, "function Reindex (lines 3-5)")

	out, _ = call(t, makeStatsHandler(svc), map[string]any{"extensions": "go"})
	assert.Contains(t, out, "Indexed: 1")
}

func TestMCPErrors(t *testing.T) {
	svc := newTestService(t)

	out, isErr := call(t, makeReadFileHandler(svc), map[string]any{"path": "../outside.txt"})
	assert.True(t, isErr)
	assert.Contains(t, out, "outside the project root")

	out, isErr = call(t, makeFileSummaryHandler(svc), map[string]any{"path": "missing.go"})
	assert.True(t, isErr)
	assert.Contains(t, out, "not in the index")

	_, isErr = call(t, makeSearchSymbolsHandler(svc), map[string]any{})
	assert.True(t, isErr)
}

func TestMCPMemories(t *testing.T) {
	svc := newTestService(t)

	out, isErr := call(t, makeAddMemoryHandler(svc), map[string]any{"content": "prefer table tests", "category": "style"})
	require.False(t, isErr, out)
	assert.Contains(t, out, "Stored memory ")

	_, isErr = call(t, makeAddMemoryHandler(svc), map[string]any{"content": "x", "tier": "forever"})
	assert.True(t, isErr)

	out, _ = call(t, makeListMemoriesHandler(svc), map[string]any{})
	assert.Equal(t, "- [long-term] prefer table tests (style)\n", out)

	out, _ = call(t, makeListMemoriesHandler(svc), map[string]any{"query": "TABLE"})
	assert.Contains(t, out, "prefer table tests")

	out, _ = call(t, makeListMemoriesHandler(svc), map[string]any{"query": "nothing like it"})
	assert.Equal(t, "No memories.", out)
}

func TestRegisterTools(t *testing.T) {
	s := mcpserver.NewMCPServer("codeindex", "test", mcpserver.WithToolCapabilities(false))
	registerTools(s, newTestService(t))

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{
		"search_symbols", "find_files", "search_text", "read_file", "list_indexed_files",
		"get_file_summary", "index_stats", "add_memory", "list_memories",
	} {
		assert.Contains(t, string(raw), `"name":"`+name+`"`)
	}
}
