package firewall

import "fmt"

// Inspector answers read-only questions about live filter state.
type Inspector struct{}

// HasBaseline reports whether the controller's stack already carries a
// baseline: true iff the filter INPUT chain holds at least one rule
// beyond the implicit default policy.
func (Inspector) HasBaseline(ctrl Controller) (bool, error) {
	rules, err := ctrl.ListRules(TableFilter, ChainInput)
	if err != nil {
		return false, fmt.Errorf("firewall: inspect baseline: %w", err)
	}
	return len(rules) > 0, nil
}

// RuleExists reports whether the exact rule is present. The
// check-then-act helpers in this package and in the NAT redirection
// manager route their read side through it.
func (Inspector) RuleExists(ctrl Controller, table, chain string, rule Rule) (bool, error) {
	ok, err := ctrl.RuleExists(table, chain, rule)
	if err != nil {
		return false, fmt.Errorf("firewall: inspect rule %q: %w", rule.String(), err)
	}
	return ok, nil
}
