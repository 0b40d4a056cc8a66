package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hookd",
	Short: "Local control-plane bridge for desktop automation",
	Long: `hookd is a long-lived local daemon that accepts a persistent websocket
connection from a trusted front-end, executes JSON commands against the
desktop (foreground state, screen capture, input injection, shell and
AppleScript automation, accessibility lookups, filesystem monitoring),
and pushes filesystem-change broadcasts to all connected clients.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to hookd.kdl configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
