package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley real-time chat coordinator",
	Long: `Parley is a real-time chat coordinator: it accepts persistent client
connections, tracks presence and room membership, and fans out messages,
typing signals, and read receipts to the right connections.

Use "parley [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
