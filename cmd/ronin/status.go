package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the application funnel by archetype",
	RunE:  runStatus,
}

// funnelOrder is the display order, submission first.
var funnelOrder = []models.OutcomeStage{
	models.OutcomeSubmitted,
	models.OutcomeAcknowledged,
	models.OutcomeViewed,
	models.OutcomeInterview,
	models.OutcomeOffer,
	models.OutcomeRejected,
	models.OutcomeGhost,
}

func runStatus(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	funnel, err := application.StorageManager.Applications().FunnelCounts(cmd.Context())
	if err != nil {
		return err
	}
	if len(funnel) == 0 {
		fmt.Println("No applications recorded yet")
		return nil
	}

	for _, archetype := range models.AllArchetypes {
		stages, ok := funnel[archetype]
		if !ok {
			continue
		}
		total := 0
		for _, count := range stages {
			total += count
		}
		fmt.Printf("%s (%d applications)\n", archetype, total)
		for _, stage := range funnelOrder {
			if count := stages[stage]; count > 0 {
				fmt.Printf("  %-18s %4d\n", stage, count)
			}
		}
	}
	return nil
}
