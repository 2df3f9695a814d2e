package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
)

var driftRunNow bool

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Show market drift per archetype",
	Long: `Shows the latest market centroid, the shift from the previous window
and the resume staleness for each archetype. With --run the full drift
cycle executes first (centroids, alignments, alerts, rewrite triggers).`,
	RunE: runDrift,
}

func init() {
	driftCmd.Flags().BoolVar(&driftRunNow, "run", false, "Run the drift cycle before reporting")
}

func runDrift(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if driftRunNow {
		if err := application.DriftEngine.Run(ctx, time.Now().UTC()); err != nil {
			return err
		}
	}

	for _, archetype := range models.AllArchetypes {
		centroid, err := application.StorageManager.Centroids().LatestCentroid(ctx, archetype)
		if common.IsNotFound(err) {
			fmt.Printf("%-12s no centroid yet\n", archetype)
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("%-12s window %s  %d JDs  shift %.4f\n",
			archetype, centroid.WindowStart.Format("2006-01-02"), centroid.JDCount, centroid.ShiftFromPrevious)
		if len(centroid.TopGainedTerms) > 0 {
			fmt.Printf("             gaining: %s\n", strings.Join(centroid.TopGainedTerms, ", "))
		}
		if len(centroid.TopLostTerms) > 0 {
			fmt.Printf("             fading:  %s\n", strings.Join(centroid.TopLostTerms, ", "))
		}

		variant, err := application.StorageManager.Variants().GetVariant(ctx, archetype)
		if err == nil && variant.AlignmentScore > 0 {
			fmt.Printf("             resume %s staleness %.4f\n", variant.CurrentVersion, variant.Staleness())
		}
	}
	return nil
}
