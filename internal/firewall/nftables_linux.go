//go:build linux

package firewall

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"github.com/plexsphere/fwctl/internal/spec"
)

// Conntrack state bits as loaded by the ct state expression.
const (
	ctStateEstablished = 0x02
	ctStateRelated     = 0x04
	ctStateNew         = 0x08
)

// NftablesController implements Controller directly over the nftables
// netlink API. It manages per-family "filter" and "nat" tables with base
// chains mirroring the classic INPUT/OUTPUT/FORWARD/PREROUTING layout.
//
// nftables has no native "would this rule match" check, so every rule the
// engine creates carries its canonical descriptor string as rule
// UserData, and RuleExists compares descriptors. Equivalent rules created
// by other tools are invisible to that check.
type NftablesController struct {
	family spec.Family
	logger *slog.Logger
}

// NewNftablesController returns a controller for the given stack. It
// opens a probe connection so a kernel without nftables support fails
// the tooling precondition up front.
func NewNftablesController(family spec.Family, logger *slog.Logger) (*NftablesController, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("firewall: nftables: %s: %w", family, err)
	}
	if _, err := conn.ListTables(); err != nil {
		return nil, fmt.Errorf("firewall: nftables: %s: %w", family, err)
	}
	return &NftablesController{
		family: family,
		logger: logger.With("component", "firewall", "stack", family),
	}, nil
}

// newNftablesController adapts the constructor for backend selection.
func newNftablesController(family spec.Family, logger *slog.Logger) (Controller, error) {
	return NewNftablesController(family, logger)
}

// Stack identifies the address family this controller mutates.
func (c *NftablesController) Stack() spec.Family {
	return c.family
}

// ListRules returns descriptor lines for the rules in the chain. Rules
// without a descriptor (created by other tools) are listed by handle.
// A missing table or chain yields an empty list.
func (c *NftablesController) ListRules(table, chain string) ([]string, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("firewall: nftables: list %s/%s: %w", table, chain, err)
	}

	rules, err := conn.GetRules(c.table(table), &nftables.Chain{Name: chain, Table: c.table(table)})
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, nil
		}
		return nil, fmt.Errorf("firewall: nftables: list %s/%s: %w", table, chain, err)
	}

	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if len(r.UserData) > 0 {
			out = append(out, string(r.UserData))
		} else {
			out = append(out, fmt.Sprintf("rule handle %d", r.Handle))
		}
	}
	return out, nil
}

// RuleExists reports whether a rule with the same descriptor is present.
func (c *NftablesController) RuleExists(table, chain string, rule Rule) (bool, error) {
	r, err := c.findRule(table, chain, rule)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// InsertRule appends the rule to the end of the chain, creating the
// table and chain first if needed.
func (c *NftablesController) InsertRule(table, chain string, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("firewall: nftables: insert into %s/%s: %w", table, chain, err)
	}

	nftTable, nftChain, err := c.ensureChain(conn, table, chain)
	if err != nil {
		return err
	}

	exprs, err := c.buildRuleExprs(rule)
	if err != nil {
		return fmt.Errorf("firewall: nftables: insert into %s/%s: %w", table, chain, err)
	}
	conn.AddRule(&nftables.Rule{
		Table:    nftTable,
		Chain:    nftChain,
		Exprs:    exprs,
		UserData: []byte(rule.String()),
	})

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("firewall: nftables: insert into %s/%s: %w", table, chain, err)
	}
	c.logger.Debug("rule appended", "table", table, "chain", chain, "rule", rule.String())
	return nil
}

// DeleteRule removes one instance of the rule, located by descriptor.
// Deleting an absent rule is an error, matching iptables -D; callers
// check existence first.
func (c *NftablesController) DeleteRule(table, chain string, rule Rule) error {
	found, err := c.findRule(table, chain, rule)
	if err != nil {
		return err
	}
	if found == nil {
		return fmt.Errorf("firewall: nftables: delete from %s/%s: rule %q not found", table, chain, rule.String())
	}

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("firewall: nftables: delete from %s/%s: %w", table, chain, err)
	}
	if err := conn.DelRule(found); err != nil {
		return fmt.Errorf("firewall: nftables: delete from %s/%s: %w", table, chain, err)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("firewall: nftables: delete from %s/%s: %w", table, chain, err)
	}
	c.logger.Debug("rule deleted", "table", table, "chain", chain, "rule", rule.String())
	return nil
}

// SetPolicy sets the base chain's default policy, creating the chain if
// it does not exist yet.
func (c *NftablesController) SetPolicy(table, chain, policy string) error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("firewall: nftables: policy on %s/%s: %w", table, chain, err)
	}

	var nftPolicy nftables.ChainPolicy
	switch policy {
	case PolicyAccept:
		nftPolicy = nftables.ChainPolicyAccept
	case PolicyDrop:
		nftPolicy = nftables.ChainPolicyDrop
	default:
		return fmt.Errorf("firewall: nftables: unsupported policy %q", policy)
	}

	nftTable := conn.AddTable(c.table(table))
	chainSpec, err := baseChain(table, chain)
	if err != nil {
		return err
	}
	chainSpec.Table = nftTable
	chainSpec.Policy = &nftPolicy
	conn.AddChain(chainSpec)

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("firewall: nftables: policy %s on %s/%s: %w", policy, table, chain, err)
	}
	c.logger.Debug("policy set", "table", table, "chain", chain, "policy", policy)
	return nil
}

// FlushChain removes all rules from the chain, creating table and chain
// as needed so flush stays idempotent.
func (c *NftablesController) FlushChain(table, chain string) error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("firewall: nftables: flush %s/%s: %w", table, chain, err)
	}

	_, nftChain, err := c.ensureChain(conn, table, chain)
	if err != nil {
		return err
	}
	conn.FlushChain(nftChain)

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("firewall: nftables: flush %s/%s: %w", table, chain, err)
	}
	c.logger.Debug("chain flushed", "table", table, "chain", chain)
	return nil
}

// table returns the per-family table handle for "filter" or "nat".
func (c *NftablesController) table(name string) *nftables.Table {
	family := nftables.TableFamilyIPv4
	if c.family == spec.FamilyIPv6 {
		family = nftables.TableFamilyIPv6
	}
	return &nftables.Table{Family: family, Name: name}
}

// ensureChain adds the table and base chain to the connection batch.
// AddTable and AddChain are idempotent in nftables.
func (c *NftablesController) ensureChain(conn *nftables.Conn, table, chain string) (*nftables.Table, *nftables.Chain, error) {
	nftTable := conn.AddTable(c.table(table))
	chainSpec, err := baseChain(table, chain)
	if err != nil {
		return nil, nil, err
	}
	chainSpec.Table = nftTable
	return nftTable, conn.AddChain(chainSpec), nil
}

// baseChain returns the hook binding for a well-known (table, chain)
// pair, mirroring the classic netfilter layout.
func baseChain(table, chain string) (*nftables.Chain, error) {
	switch {
	case table == TableFilter && chain == ChainInput:
		return &nftables.Chain{Name: chain, Type: nftables.ChainTypeFilter, Hooknum: nftables.ChainHookInput, Priority: nftables.ChainPriorityFilter}, nil
	case table == TableFilter && chain == ChainOutput:
		return &nftables.Chain{Name: chain, Type: nftables.ChainTypeFilter, Hooknum: nftables.ChainHookOutput, Priority: nftables.ChainPriorityFilter}, nil
	case table == TableFilter && chain == ChainForward:
		return &nftables.Chain{Name: chain, Type: nftables.ChainTypeFilter, Hooknum: nftables.ChainHookForward, Priority: nftables.ChainPriorityFilter}, nil
	case table == TableNAT && chain == ChainPrerouting:
		return &nftables.Chain{Name: chain, Type: nftables.ChainTypeNAT, Hooknum: nftables.ChainHookPrerouting, Priority: nftables.ChainPriorityNATDest}, nil
	}
	return nil, fmt.Errorf("firewall: nftables: no base chain binding for %s/%s", table, chain)
}

// findRule locates a rule in the chain by descriptor. Returns nil when
// the rule, chain, or table is absent.
func (c *NftablesController) findRule(table, chain string, rule Rule) (*nftables.Rule, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("firewall: nftables: check %s/%s: %w", table, chain, err)
	}

	rules, err := conn.GetRules(c.table(table), &nftables.Chain{Name: chain, Table: c.table(table)})
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, nil
		}
		return nil, fmt.Errorf("firewall: nftables: check %s/%s: %w", table, chain, err)
	}

	want := []byte(rule.String())
	for _, r := range rules {
		if bytes.Equal(r.UserData, want) {
			return r, nil
		}
	}
	return nil, nil
}

// buildRuleExprs converts a Rule into nftables match expressions and a
// verdict or redirect statement.
func (c *NftablesController) buildRuleExprs(rule Rule) ([]expr.Any, error) {
	var exprs []expr.Any

	if rule.InInterface != "" {
		exprs = append(exprs,
			&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     ifaceNameBytes(rule.InInterface),
			},
		)
	}

	if rule.Protocol != "" {
		proto, err := protocolNumber(rule.Protocol)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs,
			&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     []byte{proto},
			},
		)
	}

	if rule.SrcPort != 0 {
		exprs = append(exprs,
			&expr.Payload{
				DestRegister: 1,
				Base:         expr.PayloadBaseTransportHeader,
				Offset:       0, // TCP/UDP source port
				Len:          2,
			},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     binaryutil.BigEndian.PutUint16(rule.SrcPort),
			},
		)
	}

	if rule.DstPortStart != 0 {
		payload := &expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2, // TCP/UDP destination port
			Len:          2,
		}
		if rule.DstPortEnd != rule.DstPortStart {
			exprs = append(exprs,
				payload,
				&expr.Range{
					Op:       expr.CmpOpEq,
					Register: 1,
					FromData: binaryutil.BigEndian.PutUint16(rule.DstPortStart),
					ToData:   binaryutil.BigEndian.PutUint16(rule.DstPortEnd),
				},
			)
		} else {
			exprs = append(exprs,
				payload,
				&expr.Cmp{
					Op:       expr.CmpOpEq,
					Register: 1,
					Data:     binaryutil.BigEndian.PutUint16(rule.DstPortStart),
				},
			)
		}
	}

	if len(rule.CtStates) > 0 {
		mask, err := ctStateMask(rule.CtStates)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs,
			&expr.Ct{Key: expr.CtKeySTATE, Register: 1},
			&expr.Bitwise{
				SourceRegister: 1,
				DestRegister:   1,
				Len:            4,
				Mask:           binaryutil.NativeEndian.PutUint32(mask),
				Xor:            binaryutil.NativeEndian.PutUint32(0),
			},
			&expr.Cmp{
				Op:       expr.CmpOpNeq,
				Register: 1,
				Data:     binaryutil.NativeEndian.PutUint32(0),
			},
		)
	}

	switch rule.Action {
	case ActionAccept:
		exprs = append(exprs, &expr.Counter{}, &expr.Verdict{Kind: expr.VerdictAccept})
	case ActionRedirect:
		exprs = append(exprs,
			&expr.Counter{},
			&expr.Immediate{Register: 1, Data: binaryutil.BigEndian.PutUint16(rule.RedirectPort)},
			&expr.Redir{RegisterProtoMin: 1, RegisterProtoMax: 1},
		)
	default:
		return nil, fmt.Errorf("unsupported action %q", rule.Action)
	}

	return exprs, nil
}

// ctStateMask folds conntrack state names into the ct state bitmask.
func ctStateMask(states []string) (uint32, error) {
	var mask uint32
	for _, s := range states {
		switch s {
		case StateNew:
			mask |= ctStateNew
		case StateEstablished:
			mask |= ctStateEstablished
		case StateRelated:
			mask |= ctStateRelated
		default:
			return 0, fmt.Errorf("unsupported conntrack state %q", s)
		}
	}
	return mask, nil
}

// protocolNumber maps a protocol name to its IP protocol number.
func protocolNumber(proto string) (byte, error) {
	switch proto {
	case "tcp":
		return unix.IPPROTO_TCP, nil
	case "udp":
		return unix.IPPROTO_UDP, nil
	case "icmp":
		return unix.IPPROTO_ICMP, nil
	case "ipv6-icmp":
		return unix.IPPROTO_ICMPV6, nil
	default:
		return 0, fmt.Errorf("unsupported protocol %q", proto)
	}
}

// ifaceNameBytes returns the interface name as a null-terminated byte
// slice for nftables expression matching.
func ifaceNameBytes(name string) []byte {
	buf := make([]byte, len(name)+1)
	copy(buf, name)
	return buf
}
