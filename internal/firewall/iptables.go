package firewall

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-iptables/iptables"

	"github.com/plexsphere/fwctl/internal/spec"
)

// commandTimeout is the xtables lock wait passed to every iptables
// invocation, in seconds.
const commandTimeout = 5

// IPTablesController implements Controller by driving the iptables or
// ip6tables binary through coreos/go-iptables. Rule existence uses the
// binary's native -C check, so rules created by other tools are visible
// to the engine.
type IPTablesController struct {
	family spec.Family
	ipt    *iptables.IPTables
	logger *slog.Logger
}

// NewIPTablesController returns a controller for the given stack. It
// fails when the corresponding binary is not on PATH, which callers
// treat as the missing-tooling precondition.
func NewIPTablesController(family spec.Family, logger *slog.Logger) (*IPTablesController, error) {
	proto := iptables.ProtocolIPv4
	if family == spec.FamilyIPv6 {
		proto = iptables.ProtocolIPv6
	}
	ipt, err := iptables.New(iptables.IPFamily(proto), iptables.Timeout(commandTimeout))
	if err != nil {
		return nil, fmt.Errorf("firewall: iptables: %s: %w", family, err)
	}
	return &IPTablesController{
		family: family,
		ipt:    ipt,
		logger: logger.With("component", "firewall", "stack", family),
	}, nil
}

// Stack identifies the address family this controller mutates.
func (c *IPTablesController) Stack() spec.Family {
	return c.family
}

// ListRules returns the -A lines of the chain, without the policy line.
// A chain or table that does not exist yet yields an empty list.
func (c *IPTablesController) ListRules(table, chain string) ([]string, error) {
	lines, err := c.ipt.List(table, chain)
	if err != nil {
		if eerr, ok := err.(*iptables.Error); ok && eerr.IsNotExist() {
			return nil, nil
		}
		return nil, fmt.Errorf("firewall: iptables: list %s/%s: %w", table, chain, err)
	}
	rules := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "-A ") {
			rules = append(rules, line)
		}
	}
	return rules, nil
}

// RuleExists issues the native iptables -C check. go-iptables reports a
// missing chain as a plain "not present", which is exactly the tolerant
// behavior the engine requires.
func (c *IPTablesController) RuleExists(table, chain string, rule Rule) (bool, error) {
	ok, err := c.ipt.Exists(table, chain, ruleArgs(rule)...)
	if err != nil {
		if eerr, isIPTErr := err.(*iptables.Error); isIPTErr && eerr.IsNotExist() {
			return false, nil
		}
		return false, fmt.Errorf("firewall: iptables: check %s/%s: %w", table, chain, err)
	}
	return ok, nil
}

// InsertRule appends the rule to the end of the chain.
func (c *IPTablesController) InsertRule(table, chain string, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := c.ipt.Append(table, chain, ruleArgs(rule)...); err != nil {
		return fmt.Errorf("firewall: iptables: append to %s/%s: %w", table, chain, err)
	}
	c.logger.Debug("rule appended", "table", table, "chain", chain, "rule", rule.String())
	return nil
}

// DeleteRule removes one instance of the rule from the chain.
func (c *IPTablesController) DeleteRule(table, chain string, rule Rule) error {
	if err := c.ipt.Delete(table, chain, ruleArgs(rule)...); err != nil {
		return fmt.Errorf("firewall: iptables: delete from %s/%s: %w", table, chain, err)
	}
	c.logger.Debug("rule deleted", "table", table, "chain", chain, "rule", rule.String())
	return nil
}

// SetPolicy sets the chain's default policy.
func (c *IPTablesController) SetPolicy(table, chain, policy string) error {
	if err := c.ipt.ChangePolicy(table, chain, policy); err != nil {
		return fmt.Errorf("firewall: iptables: policy %s on %s/%s: %w", policy, table, chain, err)
	}
	c.logger.Debug("policy set", "table", table, "chain", chain, "policy", policy)
	return nil
}

// FlushChain removes all rules from the chain. ClearChain also creates
// the chain when missing, which keeps flush idempotent.
func (c *IPTablesController) FlushChain(table, chain string) error {
	if err := c.ipt.ClearChain(table, chain); err != nil {
		return fmt.Errorf("firewall: iptables: flush %s/%s: %w", table, chain, err)
	}
	c.logger.Debug("chain flushed", "table", table, "chain", chain)
	return nil
}

// ruleArgs renders a Rule as an iptables rulespec. Field order matches
// iptables -S output so the same args work for -C, -A and -D.
func ruleArgs(rule Rule) []string {
	var args []string
	if rule.InInterface != "" {
		args = append(args, "-i", rule.InInterface)
	}
	if rule.Protocol != "" {
		args = append(args, "-p", rule.Protocol)
	}
	if rule.SrcPort != 0 {
		args = append(args, "--sport", fmt.Sprintf("%d", rule.SrcPort))
	}
	if rule.DstPortStart != 0 {
		if rule.DstPortEnd != rule.DstPortStart {
			args = append(args, "--dport", fmt.Sprintf("%d:%d", rule.DstPortStart, rule.DstPortEnd))
		} else {
			args = append(args, "--dport", fmt.Sprintf("%d", rule.DstPortStart))
		}
	}
	if len(rule.CtStates) > 0 {
		args = append(args, "-m", "conntrack", "--ctstate", strings.Join(rule.CtStates, ","))
	}
	switch rule.Action {
	case ActionRedirect:
		args = append(args, "-j", "REDIRECT", "--to-ports", fmt.Sprintf("%d", rule.RedirectPort))
	default:
		args = append(args, "-j", "ACCEPT")
	}
	return args
}
