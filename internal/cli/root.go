// Package cli implements the taintgate command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taintgate",
	Short: "Taint-based information-flow policy gate for action dispatch",
	Long: "Gates command-style actions on the provenance and sanitization history\n" +
		"of their inputs. Control-role parameters require trusted data; declared\n" +
		"sanitization requirements demand evidence, not labels.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
