package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagLimit int
	flagFTS   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the index",
}

var searchSymbolsCmd = &cobra.Command{
	Use:   "symbols <name>",
	Short: "Find symbols whose name contains <name>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		matches, err := a.search.SearchSymbolsWithPaths(cmd.Context(), args[0], flagLimit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Printf("No symbols matching %q\n", args[0])
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%s:%d-%d  %s %s\n", a.search.Rel(m.Path), m.LineStart, m.LineEnd, m.Kind, m.Name)
		}
		return nil
	},
}

var searchFilesCmd = &cobra.Command{
	Use:   "files <query>",
	Short: "Rank indexed files whose path contains <query>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		matches, err := a.search.FindFiles(cmd.Context(), args[0], flagLimit)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Printf("%7.1f  %s\n", m.Score, m.RelPath)
		}
		return nil
	},
}

var searchTextCmd = &cobra.Command{
	Use:   "text <pattern>",
	Short: "Find lines containing <pattern> literally",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.Join(args, " ")
		if flagFTS {
			hits, err := a.search.FullText(cmd.Context(), query, flagLimit)
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Printf("%s: %s\n", a.search.Rel(h.Path), h.Snippet)
			}
			return nil
		}

		lines, err := a.search.SearchText(cmd.Context(), query, flagLimit)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	searchCmd.PersistentFlags().IntVarP(&flagLimit, "limit", "n", 20, "maximum results")
	searchTextCmd.Flags().BoolVar(&flagFTS, "fts", false, "match <pattern> as a full-text query and print [highlighted] snippets")
	searchCmd.AddCommand(searchSymbolsCmd, searchFilesCmd, searchTextCmd)
	rootCmd.AddCommand(searchCmd)
}
