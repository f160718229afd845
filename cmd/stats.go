package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codeindex/internal/tui"
)

var (
	flagScope []string
	flagExts  []string
	flagWidth int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if len(flagScope) > 0 || len(flagExts) > 0 {
			scopes := flagScope
			if len(scopes) == 0 {
				scopes = []string{""}
			}
			var b strings.Builder
			b.WriteString("| Scope | Indexed | Enriched | Avg quality |\n|---|---|---|---|\n")
			for _, scope := range scopes {
				st, err := a.search.ScopedStats(ctx, scope, flagExts)
				if err != nil {
					return err
				}
				name := scope
				if name == "" {
					name = "."
				}
				fmt.Fprintf(&b, "| %s | %d | %d | %.1f |\n", name, st.Indexed, st.Enriched, st.AverageQuality)
			}
			fmt.Print(tui.RenderMarkdown(b.String(), flagWidth))
			return nil
		}

		st, err := a.search.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Print(tui.RenderMarkdown(tui.StatsMarkdown(a.paths.Root, st), flagWidth))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <file>",
	Short: "Show a file's stored summary, quality and symbols",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.search.File(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		md := tui.SummaryMarkdown(a.search.Rel(info.Path), info.Resource, info.Symbols)
		fmt.Print(tui.RenderMarkdown(md, flagWidth))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringSliceVar(&flagScope, "scope", nil, "path prefixes to aggregate separately")
	statsCmd.Flags().StringSliceVar(&flagExts, "ext", nil, "extensions to include in scoped stats")
	rootCmd.PersistentFlags().IntVar(&flagWidth, "width", 100, "render width for formatted output")
	rootCmd.AddCommand(statsCmd, summaryCmd)
}
