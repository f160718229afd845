package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"codeindex/internal/store"
)

var (
	flagTier       string
	flagCategory   string
	flagProtection int
	flagOlderThan  time.Duration
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage notes kept alongside the index",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.search.AddMemory(cmd.Context(), store.MemoryEntry{
			Tier:            store.Tier(flagTier),
			Content:         strings.Join(args, " "),
			Category:        flagCategory,
			ProtectionLevel: flagProtection,
		})
		if err != nil {
			return err
		}
		fmt.Println(m.ID)
		return nil
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest memories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tier := store.Tier(flagTier)
		if !cmd.Flags().Changed("tier") {
			tier = ""
		}
		list, err := a.search.ListMemories(cmd.Context(), tier, flagLimit)
		if err != nil {
			return err
		}
		for _, m := range list {
			printMemory(m, "")
		}
		return nil
	},
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Find memories related to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tier := store.Tier(flagTier)
		if !cmd.Flags().Changed("tier") {
			tier = ""
		}
		matches, err := a.search.RecallMemories(cmd.Context(), strings.Join(args, " "), tier, flagLimit)
		if err != nil {
			return err
		}
		for _, m := range matches {
			dist := ""
			if m.Distance >= 0 {
				dist = fmt.Sprintf("%.3f ", m.Distance)
			}
			printMemory(m.MemoryEntry, dist)
		}
		return nil
	},
}

var memoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete unprotected memories of a tier older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.PruneMemories(cmd.Context(), store.Tier(flagTier), time.Now().Add(-flagOlderThan))
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d memories\n", n)
		return nil
	},
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete one memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.store.DeleteMemory(cmd.Context(), args[0])
	},
}

func printMemory(m store.MemoryEntry, prefix string) {
	cat := ""
	if m.Category != "" {
		cat = " [" + m.Category + "]"
	}
	fmt.Printf("%s%s %s %s%s\n  %s\n", prefix, m.ID, m.Timestamp.Format(time.DateTime), m.Tier, cat, m.Content)
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&flagTier, "tier", string(store.TierLongTerm), "memory tier: short-term or long-term")
	memoryCmd.PersistentFlags().IntVarP(&flagLimit, "limit", "n", 20, "maximum results")
	memoryAddCmd.Flags().StringVar(&flagCategory, "category", "", "free-form category")
	memoryAddCmd.Flags().IntVar(&flagProtection, "protect", 0, "protection level; protected memories are never pruned")
	memoryPruneCmd.Flags().DurationVar(&flagOlderThan, "older-than", 7*24*time.Hour, "age threshold")
	memoryCmd.AddCommand(memoryAddCmd, memoryListCmd, memoryRecallCmd, memoryPruneCmd, memoryForgetCmd)
	rootCmd.AddCommand(memoryCmd)
}
