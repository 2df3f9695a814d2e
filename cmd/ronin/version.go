package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Ronin version %s\n", common.GetVersion())
	},
}
