package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func usageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's model usage against the daily ceilings",
		Long: `Print the cost governor's counters for a user for today (UTC).
Counters persist across invocations only with the redis ledger
(PULSE_COST_LEDGER_TYPE=redis).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			userID, _ := cmd.Flags().GetString("user")
			format, _ := cmd.Flags().GetString("format")

			usage, err := a.governor.Today(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to read usage: %w", err)
			}

			if format == "json" {
				return printJSON(usage)
			}

			cfg := a.cfg.Cost
			fmt.Printf("usage for %s (today, UTC)\n", userID)
			fmt.Printf("  model calls:  %d / %d\n", usage.ModelCalls, cfg.MaxDailyCalls)
			fmt.Printf("  embeddings:   %d / %d\n", usage.EmbeddingCalls, cfg.MaxDailyEmbeddings)
			fmt.Printf("  completions:  %d / %d\n", usage.CompletionCalls, cfg.MaxDailyCompletions)
			fmt.Printf("  tokens:       %d / %d\n", usage.TokensUsed, cfg.MaxDailyTokens)
			fmt.Printf("  spend:        $%.4f / $%.2f\n", usage.EstimatedCostUSD, cfg.MaxDailyCostUSD)
			return nil
		},
	}

	cmd.Flags().StringP("user", "u", demoUser, "user id to inspect")
	return cmd
}
