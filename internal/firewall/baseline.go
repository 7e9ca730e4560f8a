package firewall

import (
	"fmt"
	"log/slog"

	"github.com/plexsphere/fwctl/internal/spec"
)

// Initializer establishes the default-deny baseline: INPUT and FORWARD
// policies DROP, OUTPUT ACCEPT, plus the minimum always-allow exceptions
// (loopback, established/related conntrack state, the stack's ICMP
// protocol, and optionally DHCP).
type Initializer struct {
	v4        Controller
	v6        Controller
	inspector Inspector
	cfg       Config
	logger    *slog.Logger
}

// NewInitializer creates an Initializer for the given stack controllers.
func NewInitializer(v4, v6 Controller, cfg Config, logger *slog.Logger) *Initializer {
	cfg.ApplyDefaults()
	return &Initializer{
		v4:     v4,
		v6:     v6,
		cfg:    cfg,
		logger: logger.With("component", "firewall"),
	}
}

// Ensure applies the baseline to both stacks unless it is already in
// place. Presence is judged from the v4 INPUT chain alone; when v4 is
// bare, both stacks are (re)applied as one logical unit. A v6 stack left
// uninitialized by a partial prior failure is therefore not repaired
// while v4 looks initialized — the presence signal is deliberately
// v4-only and callers should not rely on Ensure to heal v6 drift.
// Every insert is existence-checked, so re-running is a no-op.
func (i *Initializer) Ensure() error {
	ok, err := i.inspector.HasBaseline(i.v4)
	if err != nil {
		return fmt.Errorf("firewall: ensure baseline: %w", err)
	}
	if ok {
		i.logger.Debug("baseline already present, skipping")
		return nil
	}

	for _, ctrl := range []Controller{i.v4, i.v6} {
		if err := i.apply(ctrl); err != nil {
			return fmt.Errorf("firewall: ensure baseline: %s: %w", ctrl.Stack(), err)
		}
	}
	i.logger.Info("baseline applied", "policy", "default-deny")
	return nil
}

// apply installs the baseline on a single stack: flush INPUT/OUTPUT,
// set default policies, then append the allow rules in fixed order.
func (i *Initializer) apply(ctrl Controller) error {
	for _, chain := range []string{ChainInput, ChainOutput} {
		if err := ctrl.FlushChain(TableFilter, chain); err != nil {
			return fmt.Errorf("flush %s: %w", chain, err)
		}
	}

	policies := []struct {
		chain  string
		policy string
	}{
		{ChainInput, PolicyDrop},
		{ChainForward, PolicyDrop},
		{ChainOutput, PolicyAccept},
	}
	for _, p := range policies {
		if err := ctrl.SetPolicy(TableFilter, p.chain, p.policy); err != nil {
			return fmt.Errorf("set %s policy %s: %w", p.chain, p.policy, err)
		}
	}

	for _, rule := range i.allowRules(ctrl.Stack()) {
		if err := insertUnlessPresent(ctrl, TableFilter, ChainInput, rule); err != nil {
			return err
		}
		i.logger.Debug("baseline allow rule ensured",
			"stack", ctrl.Stack(),
			"rule", rule.String(),
		)
	}
	return nil
}

// allowRules returns the stack's baseline allow rules in their fixed
// insertion order.
func (i *Initializer) allowRules(family spec.Family) []Rule {
	rules := []Rule{
		{InInterface: "lo", Action: ActionAccept},
		{CtStates: []string{StateEstablished, StateRelated}, Action: ActionAccept},
		{Protocol: ICMPProtocol(family), Action: ActionAccept},
	}
	if i.cfg.dhcpAllowed() {
		if family == spec.FamilyIPv6 {
			rules = append(rules, Rule{Protocol: "udp", SrcPort: 547, DstPortStart: 546, DstPortEnd: 546, Action: ActionAccept})
		} else {
			rules = append(rules, Rule{Protocol: "udp", SrcPort: 67, DstPortStart: 68, DstPortEnd: 68, Action: ActionAccept})
		}
	}
	return rules
}

// inspect is the shared read side of the check-then-act helpers.
var inspect Inspector

// insertUnlessPresent is the single check-then-act primitive shared by
// the baseline and the reconciler. The check and the insert are not
// atomic; a concurrent mutator can still produce a duplicate (accepted,
// see the command-level lock).
func insertUnlessPresent(ctrl Controller, table, chain string, rule Rule) error {
	ok, err := inspect.RuleExists(ctrl, table, chain, rule)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := ctrl.InsertRule(table, chain, rule); err != nil {
		return fmt.Errorf("insert rule %q: %w", rule.String(), err)
	}
	return nil
}

// deleteWhilePresent removes every instance of the rule, looping until
// the existence check reports absence. Handles duplicates accumulated
// from manual edits.
func deleteWhilePresent(ctrl Controller, table, chain string, rule Rule) error {
	for {
		ok, err := inspect.RuleExists(ctrl, table, chain, rule)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := ctrl.DeleteRule(table, chain, rule); err != nil {
			return fmt.Errorf("delete rule %q: %w", rule.String(), err)
		}
	}
}
