package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "timerctl",
	Short: "Actor timer service development CLI",
	Long: `Timerctl drives an in-process actor timer dispatcher through scripted
scenarios. It is a development harness for exercising the timer command
surface by hand; the timer service itself exposes no wire protocol.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add subcommands.
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)
}
