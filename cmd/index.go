package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"codeindex/internal/events"
)

var flagQuiet bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the project, updating only files that changed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ch, unsubscribe := a.bus.Subscribe()
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printProgress(ch, flagQuiet)
		}()

		c := a.coordinator(a.bus)
		fmt.Printf("Indexing %s...\n", a.paths.Root)
		start := time.Now()
		err = a.reindex(ctx, c)
		c.Stop()
		c.Wait()
		unsubscribe()
		<-printed
		if err != nil {
			return err
		}

		st, err := a.search.Stats(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Files:   %d\n", st.Resources)
		fmt.Printf("  Symbols: %d\n", st.Symbols)
		return nil
	},
}

// printProgress writes a line per completed file until ch closes. Progress
// is published before and after each file; only the latter is printed.
func printProgress(ch <-chan events.Event, quiet bool) {
	last := 0
	for ev := range ch {
		switch ev.Kind {
		case events.IndexingStarted, events.AIEnrichmentStarted:
			last = 0
		case events.IndexingProgress, events.AIEnrichmentProgress:
			if quiet || ev.Processed == last {
				continue
			}
			last = ev.Processed
			fmt.Printf("  [%d/%d] %s\n", ev.Processed, ev.Total, ev.CurrentFile)
		case events.FileIndexed:
			if !quiet {
				fmt.Printf("  indexed %s\n", ev.CurrentFile)
			}
		case events.FileRemoved:
			if !quiet {
				fmt.Printf("  removed %s\n", ev.CurrentFile)
			}
		case events.IndexingCompleted:
			fmt.Printf("  %d files processed in %s\n", ev.Count, ev.Duration.Round(time.Millisecond))
		case events.AIEnrichmentCompleted:
			fmt.Printf("  %d files enriched in %s\n", ev.Count, ev.Duration.Round(time.Millisecond))
		}
	}
}

func init() {
	indexCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "only print the summary")
	rootCmd.AddCommand(indexCmd)
}
