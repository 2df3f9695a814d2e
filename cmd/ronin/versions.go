package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Show outcome counts per resume version",
	Long: `Rolls the funnel up by archetype and resume version so rewrites can
be compared: which version of each variant actually earned interviews.`,
	RunE: runVersions,
}

func runVersions(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	rows, err := application.StorageManager.Applications().VersionOutcomes(cmd.Context())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No applications recorded yet")
		return nil
	}

	lastKey := ""
	for _, row := range rows {
		key := fmt.Sprintf("%s %s", row.Archetype, row.ResumeVersion)
		if key != lastKey {
			fmt.Printf("%s (resume %s)\n", row.Archetype, row.ResumeVersion)
			lastKey = key
		}
		fmt.Printf("  %-18s %4d\n", row.Stage, row.Count)
	}
	return nil
}
