package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay spooled writes and refresh local state",
	Long: `Flushes the offline spool into the store, syncs resume variants from
the variants directory and classifies any pending listings. Run this
after the store comes back from an outage.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.FlushSpool(ctx); err != nil {
		return err
	}

	changed, err := application.VariantService.Sync(ctx)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		fmt.Printf("Resume variants refreshed: %v\n", changed)
	}

	classified, err := application.ClassifierService.ClassifyPending(ctx, 500)
	if err != nil {
		return err
	}
	if classified > 0 {
		fmt.Printf("Classified %d pending listings\n", classified)
	}

	fmt.Println("Sync complete")
	return nil
}
