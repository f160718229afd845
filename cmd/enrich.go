package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"codeindex/internal/llm"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Score and summarize source files with the configured model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		models, err := llm.ListModels(ctx, a.cfg.Ollama.URL)
		if err != nil {
			return fmt.Errorf("ollama unavailable at %s: %w", a.cfg.Ollama.URL, err)
		}
		if !llm.HasModel(models, a.cfg.Ollama.ScoreModel) {
			return fmt.Errorf("model %q not found; run 'ollama pull %s'", a.cfg.Ollama.ScoreModel, a.cfg.Ollama.ScoreModel)
		}

		ch, unsubscribe := a.bus.Subscribe()
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printProgress(ch, flagQuiet)
		}()

		fmt.Printf("Enriching %s with %s...\n", a.paths.Root, a.cfg.Ollama.ScoreModel)
		stats, err := a.enricher(a.bus).Run(ctx)
		unsubscribe()
		<-printed

		fmt.Printf("\nDone in %s\n", stats.Duration.Round(time.Millisecond))
		fmt.Printf("  Files:     %d\n", stats.Total)
		fmt.Printf("  Enriched:  %d\n", stats.Enriched)
		fmt.Printf("  Unchanged: %d\n", stats.Skipped)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
		if ctx.Err() != nil {
			fmt.Println("Interrupted.")
			return nil
		}
		return err
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List Ollama models and check the configured ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		models, err := llm.ListModels(cmd.Context(), a.cfg.Ollama.URL)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Printf("  %-40s %s\n", m.Name, llm.FormatSize(m.Size))
		}
		for _, want := range []string{a.cfg.Ollama.ScoreModel, a.cfg.Ollama.EmbedModel} {
			mark := "✓"
			if !llm.HasModel(models, want) {
				mark = "✗"
			}
			fmt.Printf("%s %s\n", mark, want)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "only print the summary")
	rootCmd.AddCommand(enrichCmd, modelsCmd)
}
