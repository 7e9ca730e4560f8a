package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show filter and NAT state",
	Long:  "List the filter chains and NAT redirections for both stacks. Read-only.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return fmt.Errorf("fwctl status: %w", err)
	}
	eng.printer.PrintFilter(cmd.OutOrStdout())
	return nil
}
