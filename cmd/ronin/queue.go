package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/models"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the per-archetype application queue",
	RunE:  runQueue,
}

func runQueue(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.Coordinator.ListQueue(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Application queue")
	total := 0
	for _, archetype := range models.AllArchetypes {
		count := summary.Counts[archetype]
		if count == 0 {
			continue
		}
		fmt.Printf("  %-12s %4d listings, avg top score %.2f\n",
			archetype, count, summary.AverageTopScore[archetype])
		total += count
	}
	if total == 0 {
		fmt.Println("  (empty)")
	}
	if summary.NeedsReview > 0 {
		fmt.Printf("  %d close calls flagged for review\n", summary.NeedsReview)
	}
	if summary.IntelligenceOnly > 0 {
		fmt.Printf("  %d listings held as market intelligence only\n", summary.IntelligenceOnly)
	}
	return nil
}
