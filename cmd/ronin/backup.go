package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the embedded store now",
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	dest, err := application.BackupService.Run(cmd.Context())
	if err != nil {
		return err
	}
	if dest == "" {
		fmt.Println("Backup skipped: store engine manages its own backups")
		return nil
	}
	fmt.Printf("Snapshot written to %s\n", dest)
	return nil
}
