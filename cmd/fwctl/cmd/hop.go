package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/fwctl/internal/spec"
)

var hopCmd = &cobra.Command{
	Use:   "hop",
	Short: "Manage NAT port redirections",
	Long: "Add, remove, or list NAT pre-routing redirections that rewrite the\n" +
		"destination port of inbound packets matching a spec to a fixed local port.",
}

var hopAddCmd = &cobra.Command{
	Use:   "add <to-port> <from-spec> [iface]",
	Short: "Add a port redirection",
	Long: "Redirect inbound traffic matching from-spec to to-port. The interface\n" +
		"defaults to the " + hopIfaceHelp,
	Args: cobra.RangeArgs(2, 3),
	RunE: runHopAdd,
}

var hopDelCmd = &cobra.Command{
	Use:   "del [<to-port> <from-spec> [iface]]",
	Short: "Remove port redirections",
	Long: "Remove the redirection matching the arguments. The interface defaults\n" +
		"to the " + hopIfaceHelp + "\n" +
		"With no arguments, flush every redirection on both stacks.",
	Args: validHopDelArgs,
	RunE: runHopDel,
}

var hopStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List active port redirections",
	RunE:  runHopStatus,
}

const hopIfaceHelp = "FWCTL_HOP_IFACE environment variable, then the default-route\ninterface, then the configured fallback."

func init() {
	hopCmd.AddCommand(hopAddCmd)
	hopCmd.AddCommand(hopDelCmd)
	hopCmd.AddCommand(hopStatusCmd)
	rootCmd.AddCommand(hopCmd)
}

// validHopDelArgs accepts zero args (flush everything) or the same 2-3
// args as hop add.
func validHopDelArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || len(args) == 2 || len(args) == 3 {
		return nil
	}
	return fmt.Errorf("accepts 0, 2 or 3 args, received %d", len(args))
}

func runHopAdd(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return fmt.Errorf("fwctl hop add: %w", err)
	}

	rule, err := parseHopArgs(args)
	if err != nil {
		return fmt.Errorf("fwctl hop add: %w", err)
	}

	lock, err := eng.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := eng.hops.Add(rule); err != nil {
		return fmt.Errorf("fwctl hop add: %w", err)
	}
	eng.persistRules()
	return nil
}

func runHopDel(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return fmt.Errorf("fwctl hop del: %w", err)
	}

	lock, err := eng.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	if len(args) == 0 {
		eng.logger.Warn("no arguments given, flushing all redirections")
		if err := eng.hops.Flush(); err != nil {
			return fmt.Errorf("fwctl hop del: %w", err)
		}
	} else {
		rule, err := parseHopArgs(args)
		if err != nil {
			return fmt.Errorf("fwctl hop del: %w", err)
		}
		if err := eng.hops.Delete(rule); err != nil {
			return fmt.Errorf("fwctl hop del: %w", err)
		}
	}

	eng.persistRules()
	return nil
}

func runHopStatus(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return fmt.Errorf("fwctl hop status: %w", err)
	}
	eng.printer.PrintHops(cmd.OutOrStdout())
	return nil
}

// parseHopArgs turns CLI arguments into a HopRule: to-port, from-spec,
// optional interface.
func parseHopArgs(args []string) (spec.HopRule, error) {
	rule, err := spec.ParseHop(args[0], args[1])
	if err != nil {
		return spec.HopRule{}, err
	}
	if len(args) == 3 {
		rule.Iface = args[2]
	}
	return rule, nil
}
