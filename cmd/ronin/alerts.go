package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/models"
)

var (
	alertsAll   bool
	alertsAckID string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List drift alerts",
	Long: `Lists open drift alerts. Rewrite-triggered alerts carry the rewrite
report: what the market is shifting towards and what the resume should
de-emphasise.`,
	RunE: runAlerts,
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsAll, "all", false, "Include acknowledged alerts")
	alertsCmd.Flags().StringVar(&alertsAckID, "ack", "", "Acknowledge the alert with this id")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if alertsAckID != "" {
		if err := application.StorageManager.Alerts().Acknowledge(ctx, alertsAckID); err != nil {
			return err
		}
		fmt.Printf("Alert %s acknowledged\n", alertsAckID)
		return nil
	}

	alerts, err := application.StorageManager.Alerts().ListAlerts(ctx, alertsAll)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts")
		return nil
	}

	for _, alert := range alerts {
		status := "open"
		if alert.Acknowledged {
			status = "acked"
		}
		fmt.Printf("%s  %-12s %-18s %.4f (threshold %.4f) [%s] %s\n",
			alert.CreatedAt.Format("2006-01-02"), alert.Archetype, alert.Type,
			alert.MetricValue, alert.ThresholdValue, status, alert.ID)

		if alert.Type == models.AlertRewriteTriggered && alert.Details != "" {
			var report models.RewriteReport
			if err := json.Unmarshal([]byte(alert.Details), &report); err == nil {
				fmt.Printf("    %s\n", report.SuggestedFocus)
				if len(report.GainedTerms) > 0 {
					fmt.Printf("    gaining: %s\n", strings.Join(report.GainedTerms, ", "))
				}
				if len(report.LostTerms) > 0 {
					fmt.Printf("    fading:  %s\n", strings.Join(report.LostTerms, ", "))
				}
			}
		}
	}
	return nil
}
