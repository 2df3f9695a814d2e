package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <archetype>",
	Short: "Record a completed resume rewrite",
	Long: `Marks the archetype's resume as rewritten at its current file
content and refreshes the stored version and embedding. Run this after
acting on a rewrite-triggered alert; it restarts the rewrite cooldown.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func runRewrite(cmd *cobra.Command, args []string) error {
	archetype := models.Archetype(args[0])
	if !archetype.Valid() {
		return common.ValidationError("archetype", fmt.Sprintf("%q is not one of %v", args[0], models.AllArchetypes))
	}

	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.VariantService.MarkRewritten(ctx, archetype); err != nil {
		return err
	}
	if _, err := application.VariantService.Sync(ctx); err != nil {
		return err
	}

	variant, err := application.StorageManager.Variants().GetVariant(ctx, archetype)
	if err != nil {
		return err
	}
	fmt.Printf("Resume for %s recorded as version %s\n", archetype, variant.CurrentVersion)
	return nil
}
