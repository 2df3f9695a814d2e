package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with the scheduler and intake listener",
	Long: `Starts the long-running process: spool recovery, resume variant sync,
the job scheduler (inbox polling, weekly drift, backups) and the
optional phone-call intake listener.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetVersion())

	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return application.Stop(shutdownCtx)
}
