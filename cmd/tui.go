package cmd

import (
	"github.com/spf13/cobra"

	"codeindex/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive dashboard with reindex, enrichment and search",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

func runTUI(cmd *cobra.Command) error {
	a, err := openWith(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ch, unsubscribe := a.bus.Subscribe()
	defer unsubscribe()

	c := a.coordinator(a.bus)
	defer func() {
		c.Stop()
		c.Wait()
	}()

	return tui.Run(tui.Config{
		Ctx:       cmd.Context(),
		Reindexer: c,
		Enricher:  a.enricher(a.bus),
		Search:    a.search,
		Events:    ch,
	})
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
