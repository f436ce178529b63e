package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show engine counters and breaker state",
		Long: `Print the engine's counter snapshot and the per-backend circuit
breaker state. Counters are per-process, so this is mostly useful after
queries in the same invocation or from an embedding host.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			format, _ := cmd.Flags().GetString("format")

			snap := a.metrics.Snapshot()
			breakers := a.engine.BreakerSnapshots()

			if format == "json" {
				return printJSON(map[string]any{
					"engine":   snap,
					"breakers": breakers,
				})
			}

			fmt.Printf("queries: %d (errors %d, fallbacks %d)\n", snap.Queries, snap.QueryErrors, snap.FallbackAnswers)
			fmt.Printf("cache:   %d hits, %d misses\n", snap.CacheHits, snap.CacheMisses)
			fmt.Printf("cost:    %d denials\n", snap.CostDenials)
			fmt.Printf("latency: %.1fms avg, error rate %.3f\n", snap.AvgLatencyMs, snap.ErrorRate)
			for _, b := range breakers {
				fmt.Printf("breaker[%s]: %s (failures %d, attempts %d)\n",
					b.Backend, b.State, b.FailureCount, b.Attempts)
			}
			return nil
		},
	}
}
