// Package main provides the pulse-insights CLI: answer productivity
// questions over a user's tracked work using the hybrid query engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "insights",
		Short: "Pulse Insights - hybrid productivity query engine",
		Long: `Pulse Insights answers natural-language questions about tracked
productivity data by combining exact structured queries with semantic
vector search, synthesized into one grounded answer.

Run 'insights query "how many tasks did I finish this week?"' to ask.
Run 'insights --help' for available commands.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		queryCmd(),
		usageCmd(),
		metricsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("insights %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
