package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"codeindex/internal/search"
	"codeindex/internal/store"
)

const mcpDefaultLimit = 20

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index read surface over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcpserver.NewMCPServer("codeindex", "1.0.0", mcpserver.WithToolCapabilities(false))
	registerTools(s, a.search)
	a.logger.Info("serving mcp", "root", a.paths.Root)
	return mcpserver.ServeStdio(s)
}

func registerTools(s *mcpserver.MCPServer, svc *search.Service) {
	s.AddTool(searchSymbolsTool(), makeSearchSymbolsHandler(svc))
	s.AddTool(findFilesTool(), makeFindFilesHandler(svc))
	s.AddTool(searchTextTool(), makeSearchTextHandler(svc))
	s.AddTool(readFileTool(), makeReadFileHandler(svc))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(svc))
	s.AddTool(getFileSummaryTool(), makeFileSummaryHandler(svc))
	s.AddTool(indexStatsTool(), makeStatsHandler(svc))
	s.AddTool(addMemoryTool(), makeAddMemoryHandler(svc))
	s.AddTool(listMemoriesTool(), makeListMemoriesHandler(svc))
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func limitParam() mcp.ToolOption {
	return mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of results (default %d)", mcpDefaultLimit)))
}

func searchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription("Find classes, functions and other symbols whose name contains the query. Returns path, line range and kind."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring of the symbol name")),
		limitParam(),
	)
}

func findFilesTool() mcp.Tool {
	return mcp.NewTool("find_files",
		mcp.WithDescription("Rank indexed files whose path contains the query; exact file-name matches come first."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Required(), mcp.Description("File name or path fragment")),
		limitParam(),
	)
}

func searchTextTool() mcp.Tool {
	return mcp.NewTool("search_text",
		mcp.WithDescription("Find lines containing the pattern literally. Returns 'path:line: snippet' entries."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Literal text to look for")),
		limitParam(),
	)
}

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read a file inside the project root."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the project root")),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("Page through indexed file paths."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("filter", mcp.Description("Optional substring the path must contain")),
		limitParam(),
		mcp.WithNumber("offset", mcp.Description("Number of paths to skip")),
	)
}

func getFileSummaryTool() mcp.Tool {
	return mcp.NewTool("get_file_summary",
		mcp.WithDescription("Get the stored summary, quality score and symbols of an indexed file."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the project root")),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Aggregate index statistics, optionally scoped to a path prefix and extensions."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("scope", mcp.Description("Optional path prefix relative to the project root")),
		mcp.WithString("extensions", mcp.Description("Optional comma-separated extensions, e.g. 'go,py'")),
	)
}

func addMemoryTool() mcp.Tool {
	return mcp.NewTool("add_memory",
		mcp.WithDescription("Store a note about the project for later sessions."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The note")),
		mcp.WithString("tier", mcp.Description("short-term or long-term (default long-term)"), mcp.Enum(string(store.TierShortTerm), string(store.TierLongTerm))),
		mcp.WithString("category", mcp.Description("Optional free-form category")),
	)
}

func listMemoriesTool() mcp.Tool {
	return mcp.NewTool("list_memories",
		mcp.WithDescription("List stored notes, newest first, or those most related to a query."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Description("Optional text to rank memories against")),
		mcp.WithString("tier", mcp.Description("Optional tier filter"), mcp.Enum(string(store.TierShortTerm), string(store.TierLongTerm))),
		limitParam(),
	)
}

// --- Handler factories ---

func limitArg(req mcp.CallToolRequest) int {
	if n := req.GetInt("limit", mcpDefaultLimit); n > 0 {
		return n
	}
	return mcpDefaultLimit
}

func toolError(what string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, search.ErrOutsideRoot):
		return mcp.NewToolResultError(fmt.Sprintf("%s: path is outside the project root", what))
	case search.IsNotFound(err):
		return mcp.NewToolResultError(fmt.Sprintf("%s: not in the index; call list_indexed_files to see available paths", what))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", what, err))
}

func makeSearchSymbolsHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		matches, err := svc.SearchSymbolsWithPaths(ctx, query, limitArg(req))
		if err != nil {
			return toolError("search symbols", err), nil
		}
		if len(matches) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No symbols matching %q", query)), nil
		}
		var sb strings.Builder
		for _, m := range matches {
			fmt.Fprintf(&sb, "%s:%d-%d %s %s\n", svc.Rel(m.Path), m.LineStart, m.LineEnd, m.Kind, m.Name)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeFindFilesHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		matches, err := svc.FindFiles(ctx, query, limitArg(req))
		if err != nil {
			return toolError("find files", err), nil
		}
		if len(matches) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No files matching %q", query)), nil
		}
		var sb strings.Builder
		for _, m := range matches {
			fmt.Fprintf(&sb, "%s (score %.0f)\n", m.RelPath, m.Score)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeSearchTextHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pattern := req.GetString("pattern", "")
		if pattern == "" {
			return mcp.NewToolResultError("pattern is required"), nil
		}
		lines, err := svc.SearchText(ctx, pattern, limitArg(req))
		if err != nil {
			return toolError("search text", err), nil
		}
		if len(lines) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No lines containing %q", pattern)), nil
		}
		return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
	}
}

func makeReadFileHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		content, err := svc.ReadFile(ctx, path)
		if err != nil {
			return toolError("read "+path, err), nil
		}
		return mcp.NewToolResultText(content), nil
	}
}

func makeListFilesHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := req.GetString("filter", "")
		offset := max(req.GetInt("offset", 0), 0)
		paths, err := svc.ListFiles(ctx, filter, limitArg(req), offset)
		if err != nil {
			return toolError("list files", err), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## Indexed files (%d from offset %d)\n\n", len(paths), offset)
		for _, p := range paths {
			fmt.Fprintf(&sb, "- %s\n", svc.Rel(p))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeFileSummaryHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		info, err := svc.File(ctx, path)
		if err != nil {
			return toolError("file "+path, err), nil
		}
		summary := info.Summary
		if summary == "" {
			summary = "(No summary generated yet)"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n**Language:** %s  \n**Quality:** %.0f  \n**AI enriched:** %t\n\n%s\n",
			svc.Rel(info.Path), info.Language, info.QualityScore, info.AIEnriched, summary)
		if len(info.Symbols) > 0 {
			sb.WriteString("\n### Symbols\n\n")
			for _, s := range info.Symbols {
				fmt.Fprintf(&sb, "- %s %s (lines %d-%d)\n", s.Kind, s.Name, s.LineStart, s.LineEnd)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeStatsHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scope := req.GetString("scope", "")
		var exts []string
		for _, e := range strings.Split(req.GetString("extensions", ""), ",") {
			if e = strings.TrimSpace(e); e != "" {
				exts = append(exts, e)
			}
		}
		if scope != "" || len(exts) > 0 {
			st, err := svc.ScopedStats(ctx, scope, exts)
			if err != nil {
				return toolError("scoped stats", err), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Indexed: %d\nEnriched: %d\nAverage quality: %.1f\n",
				st.Indexed, st.Enriched, st.AverageQuality)), nil
		}
		st, err := svc.Stats(ctx)
		if err != nil {
			return toolError("stats", err), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Files: %d\nSymbols: %d\nEnriched: %d\nAverage quality: %.1f\nMemories: %d\n",
			st.Resources, st.Symbols, st.Enriched, st.AverageQuality, st.Memories)
		for lang, n := range st.Languages {
			fmt.Fprintf(&sb, "Language %s: %d\n", lang, n)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeAddMemoryHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content := strings.TrimSpace(req.GetString("content", ""))
		if content == "" {
			return mcp.NewToolResultError("content is required"), nil
		}
		m, err := svc.AddMemory(ctx, store.MemoryEntry{
			Tier:     store.Tier(req.GetString("tier", string(store.TierLongTerm))),
			Content:  content,
			Category: req.GetString("category", ""),
		})
		if err != nil {
			return toolError("add memory", err), nil
		}
		return mcp.NewToolResultText("Stored memory " + m.ID), nil
	}
}

func makeListMemoriesHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tier := store.Tier(req.GetString("tier", ""))
		query := strings.TrimSpace(req.GetString("query", ""))
		var entries []store.MemoryEntry
		if query != "" {
			matches, err := svc.RecallMemories(ctx, query, tier, limitArg(req))
			if err != nil {
				return toolError("recall memories", err), nil
			}
			for _, m := range matches {
				entries = append(entries, m.MemoryEntry)
			}
		} else {
			list, err := svc.ListMemories(ctx, tier, limitArg(req))
			if err != nil {
				return toolError("list memories", err), nil
			}
			entries = list
		}
		if len(entries) == 0 {
			return mcp.NewToolResultText("No memories."), nil
		}
		var sb strings.Builder
		for _, m := range entries {
			fmt.Fprintf(&sb, "- [%s] %s", m.Tier, m.Content)
			if m.Category != "" {
				fmt.Fprintf(&sb, " (%s)", m.Category)
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
