package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hookd/internal/daemon"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hookd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hookd", daemon.Version)
	},
}
