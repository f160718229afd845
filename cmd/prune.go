package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop indexed records outside the project root and delete vanished files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		outside, err := a.store.PruneOutside(ctx, a.paths.Root)
		if err != nil {
			return err
		}
		paths, err := a.store.IndexedPathsUnder(ctx, a.paths.Root)
		if err != nil {
			return err
		}
		vanished := 0
		for _, p := range paths {
			if fileExists(p) {
				continue
			}
			if err := a.indexer.RemoveFile(ctx, p); err != nil {
				a.logger.Warn("remove vanished file", "path", p, "err", err)
				continue
			}
			vanished++
		}
		fmt.Printf("Removed %d records outside %s and %d vanished files\n", outside, a.paths.Root, vanished)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
