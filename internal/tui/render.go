package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"

	"codeindex/internal/store"
)

// RenderMarkdown renders md for a terminal of the given width. Rendering
// failures fall back to the raw markdown.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// StatsMarkdown formats index statistics as a markdown document.
func StatsMarkdown(root string, st store.IndexStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Index of `%s`\n\n", root)
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Files | %d |\n", st.Resources)
	fmt.Fprintf(&b, "| Symbols | %d |\n", st.Symbols)
	fmt.Fprintf(&b, "| AI enriched | %d |\n", st.Enriched)
	fmt.Fprintf(&b, "| Average quality | %.1f |\n", st.AverageQuality)
	fmt.Fprintf(&b, "| Memories | %d |\n", st.Memories)
	fmt.Fprintf(&b, "| Database size | %s |\n", humanBytes(st.DatabaseBytes))
	writeCounts(&b, "Languages", st.Languages)
	writeCounts(&b, "Symbol kinds", st.SymbolsByKind)
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n| | |\n|---|---|\n", title)
	keys := slices.SortedFunc(maps.Keys(counts), func(a, c string) int {
		if counts[a] != counts[c] {
			return counts[c] - counts[a]
		}
		return strings.Compare(a, c)
	})
	for _, k := range keys {
		fmt.Fprintf(b, "| %s | %d |\n", k, counts[k])
	}
}

// SummaryMarkdown formats one file's stored record for display.
func SummaryMarkdown(rel string, r store.Resource, syms []store.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rel)
	fmt.Fprintf(&b, "*%s* · quality %.0f", r.Language, r.QualityScore)
	if r.AIEnriched {
		b.WriteString(" · AI enriched")
	}
	b.WriteString("\n\n")
	if r.Summary != "" {
		b.WriteString(r.Summary + "\n\n")
	} else {
		b.WriteString("_No summary yet. Run `codeindex enrich`._\n\n")
	}
	if len(syms) > 0 {
		b.WriteString("## Symbols\n\n")
		for _, s := range syms {
			fmt.Fprintf(&b, "- `%s` %s (lines %d-%d)\n", s.Name, s.Kind, s.LineStart, s.LineEnd)
		}
	}
	return b.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
