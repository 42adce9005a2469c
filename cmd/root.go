package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "authserver",
	Short: "Credential and session lifecycle server",
	Long: `authserver issues and manages credentials, bounded per-account
session lists, and password-reset links for nimbusnote applications.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
