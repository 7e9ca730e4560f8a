package firewall

import (
	"fmt"
	"strings"

	"github.com/plexsphere/fwctl/internal/spec"
)

// Well-known table and chain names. Both backends expose the classic
// netfilter layout: accept/deny decisions live in the filter table,
// port redirection in the nat table.
const (
	TableFilter = "filter"
	TableNAT    = "nat"

	ChainInput      = "INPUT"
	ChainOutput     = "OUTPUT"
	ChainForward    = "FORWARD"
	ChainPrerouting = "PREROUTING"
)

// Chain policies.
const (
	PolicyAccept = "ACCEPT"
	PolicyDrop   = "DROP"
)

// Rule actions.
const (
	ActionAccept   = "accept"
	ActionRedirect = "redirect"
)

// Conntrack states used in rule matches.
const (
	StateNew         = "NEW"
	StateEstablished = "ESTABLISHED"
	StateRelated     = "RELATED"
)

// Rule describes one mutable packet filter or NAT rule: a match predicate
// plus an action. Zero-valued fields mean "no constraint". Two rules are
// the same rule iff all fields are equal; rules are never compared across
// stacks.
type Rule struct {
	// Protocol restricts the match to one transport or control protocol:
	// "tcp", "udp", "icmp", "ipv6-icmp", or empty for any.
	Protocol string

	// InInterface restricts the match to packets arriving on this
	// interface.
	InInterface string

	// SrcPort restricts the source port (0 = any). Used by the DHCP
	// baseline rules.
	SrcPort uint16

	// DstPortStart/DstPortEnd restrict the destination port to an
	// inclusive range. Start == End matches a single port; both zero
	// matches any port.
	DstPortStart uint16
	DstPortEnd   uint16

	// CtStates restricts the match to the given conntrack states.
	CtStates []string

	// Action is ActionAccept or ActionRedirect.
	Action string

	// RedirectPort is the destination port rewrite target when Action is
	// ActionRedirect.
	RedirectPort uint16
}

// String renders a canonical one-line descriptor for the rule. The
// descriptor doubles as the rule identity for backends without a native
// existence check and as the display form in status listings.
func (r Rule) String() string {
	var parts []string
	if r.InInterface != "" {
		parts = append(parts, "iif "+r.InInterface)
	}
	if r.Protocol != "" {
		parts = append(parts, r.Protocol)
	}
	if r.SrcPort != 0 {
		parts = append(parts, fmt.Sprintf("sport %d", r.SrcPort))
	}
	if r.DstPortStart != 0 {
		if r.DstPortEnd != r.DstPortStart {
			parts = append(parts, fmt.Sprintf("dport %d-%d", r.DstPortStart, r.DstPortEnd))
		} else {
			parts = append(parts, fmt.Sprintf("dport %d", r.DstPortStart))
		}
	}
	if len(r.CtStates) > 0 {
		parts = append(parts, "ctstate "+strings.Join(r.CtStates, ","))
	}
	switch r.Action {
	case ActionRedirect:
		parts = append(parts, fmt.Sprintf("redirect %d", r.RedirectPort))
	default:
		parts = append(parts, r.Action)
	}
	return strings.Join(parts, " ")
}

// Validate checks the rule for semantic correctness.
func (r Rule) Validate() error {
	switch r.Action {
	case ActionAccept:
		if r.RedirectPort != 0 {
			return fmt.Errorf("firewall: rule: redirect port set on accept rule")
		}
	case ActionRedirect:
		if r.RedirectPort == 0 {
			return fmt.Errorf("firewall: rule: redirect rule without target port")
		}
	default:
		return fmt.Errorf("firewall: rule: invalid action %q", r.Action)
	}
	if r.DstPortEnd != 0 && r.DstPortEnd < r.DstPortStart {
		return fmt.Errorf("firewall: rule: destination port range %d-%d inverted", r.DstPortStart, r.DstPortEnd)
	}
	return nil
}

// Controller abstracts one stack (v4 or v6) of the kernel packet filter.
// The engine never touches kernel state directly, only through this
// interface, so tests can substitute an in-memory implementation.
type Controller interface {
	// Stack identifies the address family this controller mutates.
	Stack() spec.Family

	// ListRules returns the rules currently present in the chain, one
	// descriptor line per rule, excluding the implicit chain policy.
	// A missing chain or table yields an empty list, not an error.
	ListRules(table, chain string) ([]string, error)

	// RuleExists reports whether the exact rule is present in the chain.
	// It has no side effects and returns false, not an error, when the
	// chain or table does not exist yet.
	RuleExists(table, chain string, rule Rule) (bool, error)

	// InsertRule appends the rule to the end of the chain.
	InsertRule(table, chain string, rule Rule) error

	// DeleteRule removes one instance of the rule from the chain.
	DeleteRule(table, chain string, rule Rule) error

	// SetPolicy sets the chain's default policy.
	SetPolicy(table, chain, policy string) error

	// FlushChain removes all rules from the chain, leaving the policy
	// untouched.
	FlushChain(table, chain string) error
}

// ICMPProtocol returns the echo/control protocol name for a stack.
func ICMPProtocol(family spec.Family) string {
	if family == spec.FamilyIPv6 {
		return "ipv6-icmp"
	}
	return "icmp"
}
