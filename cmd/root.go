package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagRoot       string
	flagDataDir    string
	flagLogLevel   string
	flagOllama     string
	flagScoreModel string
	flagEmbedModel string
)

var rootCmd = &cobra.Command{
	Use:           "codeindex",
	Short:         "Local, incrementally maintained code index",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagRoot, "root", "C", ".", "project root")
	pf.StringVar(&flagDataDir, "data-dir", "", "index directory (default <root>/.index)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagOllama, "ollama", "", "ollama base URL")
	pf.StringVar(&flagScoreModel, "score-model", "", "generative model used for enrichment")
	pf.StringVar(&flagEmbedModel, "embed-model", "", "embedding model used for memories")
}
