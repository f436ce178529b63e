package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pulseplan/pulse-insights/internal/synthesis"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question about tracked work",
		Long: `Classify the question, query the exact and semantic backends, and
synthesize one answer. Without an OpenAI API key the semantic backend is
skipped and answers come from the deterministic fallback.

Examples:
  insights query "how many tasks did I complete this week?"
  insights query --user demo "compare backend vs mobile work"
  insights query --format json "show me my focus sessions today"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			userID, _ := cmd.Flags().GetString("user")
			format, _ := cmd.Flags().GetString("format")
			question := strings.Join(args, " ")

			answer, err := a.engine.ProcessQuery(cmd.Context(), question, userID)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(answer)
			}
			printAnswer(answer)
			return nil
		},
	}

	cmd.Flags().StringP("user", "u", demoUser, "user id to query as")
	return cmd
}

func printAnswer(answer *synthesis.Answer) {
	fmt.Println(answer.Text)
	fmt.Println()
	fmt.Printf("confidence: %.2f", answer.Confidence)
	if len(answer.Metadata.DataSourcesUsed) > 0 {
		fmt.Printf("  sources: %s", strings.Join(answer.Metadata.DataSourcesUsed, ", "))
	}
	if answer.Metadata.Fallback {
		fmt.Print("  (fallback)")
	}
	if answer.Metadata.CacheHit {
		fmt.Print("  (cached)")
	}
	fmt.Printf("  %dms\n", answer.Metadata.ElapsedMs)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
