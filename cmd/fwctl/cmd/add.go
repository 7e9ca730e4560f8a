package cmd

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/fwctl/internal/spec"
)

var addCmd = &cobra.Command{
	Use:   "add [spec...]",
	Short: "Open inbound ports",
	Long: "Ensure the default-deny baseline, then open each port spec across the\n" +
		"matching protocols and stacks. Specs look like 80, 443/tcp, 9100-9199/udp/4.\n" +
		"With no arguments, fwctl prompts for a comma or space separated list.",
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return fmt.Errorf("fwctl add: %w", err)
	}

	specs := args
	if len(specs) == 0 {
		specs, err = promptSpecs(cmd)
		if err != nil {
			return fmt.Errorf("fwctl add: %w", err)
		}
		if len(specs) == 0 {
			return fmt.Errorf("fwctl add: no port specs given")
		}
	}

	lock, err := eng.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := eng.reconciler.AddPorts(specs); err != nil {
		return fmt.Errorf("fwctl add: %w", err)
	}
	eng.persistRules()
	return nil
}

// promptSpecs reads one line of specs from stdin when none were given on
// the command line.
func promptSpecs(cmd *cobra.Command) ([]string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "ports to open (e.g. 80, 443/tcp, 9100-9199/udp): ")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read specs: %w", err)
		}
		return nil, nil
	}
	return spec.SplitList(scanner.Text()), nil
}
