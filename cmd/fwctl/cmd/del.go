package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var delCmd = &cobra.Command{
	Use:   "del [spec...]",
	Short: "Close inbound ports",
	Long: "Close each port spec across the matching protocols and stacks,\n" +
		"removing duplicate rules as well. With no arguments, reset the filter\n" +
		"to allow-all: INPUT/OUTPUT flushed and all policies set to ACCEPT.",
	RunE: runDel,
}

func init() {
	rootCmd.AddCommand(delCmd)
}

func runDel(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return fmt.Errorf("fwctl del: %w", err)
	}

	lock, err := eng.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	if len(args) == 0 {
		eng.logger.Warn("no specs given, resetting filter to allow-all")
		if err := eng.reconciler.Reset(); err != nil {
			return fmt.Errorf("fwctl del: %w", err)
		}
	} else if err := eng.reconciler.DelPorts(args); err != nil {
		return fmt.Errorf("fwctl del: %w", err)
	}

	eng.persistRules()
	return nil
}
