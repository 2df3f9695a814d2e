package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
)

var batchCmd = &cobra.Command{
	Use:   "batch <archetype>",
	Short: "Run an application batch for one archetype",
	Long: `Opens a batch for the archetype, submits every queued listing that
selects it, and closes the batch. Only one batch can be open at a time;
the archetype's resume variant must exist in the variants directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	archetype := models.Archetype(args[0])
	if !archetype.Valid() {
		return common.ValidationError("archetype", fmt.Sprintf("%q is not one of %v", args[0], models.AllArchetypes))
	}

	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	batch, err := application.Coordinator.RunBatch(cmd.Context(), archetype)
	if err != nil {
		return err
	}

	fmt.Printf("Batch %s closed: %d applications submitted as %s (resume %s)\n",
		batch.ID, batch.ApplicationCount, batch.Archetype, batch.ProfileState)
	return nil
}
