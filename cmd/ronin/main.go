package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/app"
	"github.com/wmarzella/ronin/internal/common"
)

var (
	configFiles []string

	// Global state shared by subcommands
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "ronin",
	Short: "Job application signal and decision engine",
	Long: `Ronin tracks which professional identity each job listing rewards,
selects the resume variant to apply with, attributes recruiter signals
back to applications, and watches the market drift away from the
current resumes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		paths := configFiles
		if len(paths) == 0 {
			// Auto-discover ronin.toml next to the working directory
			if _, err := os.Stat("ronin.toml"); err == nil {
				paths = []string{"ronin.toml"}
			}
		}

		var err error
		config, err = common.LoadFromFiles(paths...)
		if err != nil {
			return err
		}
		logger = common.InitLogger(config)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil,
		"Configuration file path (repeatable, later files override earlier ones)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(logCallCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(versionCmd)
}

// newApp builds the full application for commands that touch the store.
func newApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, config, logger)
}

// exitCode maps error kinds to process exit codes: 2 invalid input,
// 3 transient failure, 4 permanent failure, 1 everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrInvariant):
		return 2
	case errors.Is(err, common.ErrTransient):
		return 3
	case errors.Is(err, common.ErrPermanent):
		return 4
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
