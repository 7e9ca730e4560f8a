// Package status formats read-only listings of the live filter and NAT
// state. It is a display collaborator: it never mutates kernel state and
// a stack that cannot be read degrades to a placeholder line instead of
// failing the whole listing.
package status

import (
	"fmt"
	"io"

	"github.com/plexsphere/fwctl/internal/firewall"
)

// Printer renders filter and NAT listings for both stacks.
type Printer struct {
	v4 firewall.Controller
	v6 firewall.Controller
}

// NewPrinter creates a Printer over the two stack controllers.
func NewPrinter(v4, v6 firewall.Controller) *Printer {
	return &Printer{v4: v4, v6: v6}
}

// PrintFilter writes the full filter and NAT state: the
// INPUT/OUTPUT/FORWARD filter chains and the NAT PREROUTING chain for
// each stack.
func (p *Printer) PrintFilter(w io.Writer) {
	for _, ctrl := range []firewall.Controller{p.v4, p.v6} {
		fmt.Fprintf(w, "%s filter:\n", ctrl.Stack())
		for _, chain := range []string{firewall.ChainInput, firewall.ChainOutput, firewall.ChainForward} {
			p.printChain(w, ctrl, firewall.TableFilter, chain)
		}
		fmt.Fprintf(w, "%s nat:\n", ctrl.Stack())
		p.printChain(w, ctrl, firewall.TableNAT, firewall.ChainPrerouting)
		fmt.Fprintln(w)
	}
}

// PrintHops writes only the NAT PREROUTING redirections per stack.
func (p *Printer) PrintHops(w io.Writer) {
	for _, ctrl := range []firewall.Controller{p.v4, p.v6} {
		fmt.Fprintf(w, "%s redirections:\n", ctrl.Stack())
		p.printChain(w, ctrl, firewall.TableNAT, firewall.ChainPrerouting)
	}
}

// printChain writes one chain's rules, a "(none)" marker when empty, or
// an unavailability note when the stack cannot be read.
func (p *Printer) printChain(w io.Writer, ctrl firewall.Controller, table, chain string) {
	fmt.Fprintf(w, "  %s:\n", chain)
	rules, err := ctrl.ListRules(table, chain)
	if err != nil {
		fmt.Fprintf(w, "    (unavailable: %v)\n", err)
		return
	}
	if len(rules) == 0 {
		fmt.Fprintln(w, "    (none)")
		return
	}
	for _, rule := range rules {
		fmt.Fprintf(w, "    %s\n", rule)
	}
}
