//go:build linux

package firewall

import (
	"bytes"
	"testing"

	"github.com/plexsphere/fwctl/internal/spec"
)

// Compile-time check that NftablesController implements Controller.
var _ Controller = (*NftablesController)(nil)

func TestBaseChainBindings(t *testing.T) {
	known := []struct {
		table string
		chain string
	}{
		{TableFilter, ChainInput},
		{TableFilter, ChainOutput},
		{TableFilter, ChainForward},
		{TableNAT, ChainPrerouting},
	}
	for _, tt := range known {
		ch, err := baseChain(tt.table, tt.chain)
		if err != nil {
			t.Errorf("baseChain(%s, %s) returned error: %v", tt.table, tt.chain, err)
			continue
		}
		if ch.Name != tt.chain {
			t.Errorf("baseChain(%s, %s).Name = %q", tt.table, tt.chain, ch.Name)
		}
	}

	if _, err := baseChain(TableNAT, ChainInput); err == nil {
		t.Error("baseChain accepted unknown table/chain pair")
	}
}

func TestCtStateMask(t *testing.T) {
	mask, err := ctStateMask([]string{StateEstablished, StateRelated})
	if err != nil {
		t.Fatalf("ctStateMask returned error: %v", err)
	}
	if mask != ctStateEstablished|ctStateRelated {
		t.Errorf("mask = %#x, want %#x", mask, ctStateEstablished|ctStateRelated)
	}

	if _, err := ctStateMask([]string{"INVALID"}); err == nil {
		t.Error("ctStateMask accepted unsupported state")
	}
}

func TestProtocolNumber(t *testing.T) {
	tests := []struct {
		proto string
		want  byte
	}{
		{"tcp", 6},
		{"udp", 17},
		{"icmp", 1},
		{"ipv6-icmp", 58},
	}
	for _, tt := range tests {
		got, err := protocolNumber(tt.proto)
		if err != nil {
			t.Errorf("protocolNumber(%q) returned error: %v", tt.proto, err)
			continue
		}
		if got != tt.want {
			t.Errorf("protocolNumber(%q) = %d, want %d", tt.proto, got, tt.want)
		}
	}
	if _, err := protocolNumber("sctp"); err == nil {
		t.Error("protocolNumber accepted unsupported protocol")
	}
}

func TestIfaceNameBytes(t *testing.T) {
	got := ifaceNameBytes("eth0")
	want := []byte{'e', 't', 'h', '0', 0}
	if !bytes.Equal(got, want) {
		t.Errorf("ifaceNameBytes(eth0) = %v, want %v", got, want)
	}
}

func TestBuildRuleExprsRejectsUnknownInputs(t *testing.T) {
	c := &NftablesController{family: spec.FamilyIPv4, logger: discardLogger()}

	if _, err := c.buildRuleExprs(Rule{Protocol: "gre", Action: ActionAccept}); err == nil {
		t.Error("buildRuleExprs accepted unsupported protocol")
	}
	if _, err := c.buildRuleExprs(Rule{CtStates: []string{"BOGUS"}, Action: ActionAccept}); err == nil {
		t.Error("buildRuleExprs accepted unsupported conntrack state")
	}
	if _, err := c.buildRuleExprs(Rule{Action: "reject"}); err == nil {
		t.Error("buildRuleExprs accepted unsupported action")
	}
}

func TestNewNftablesControllerRequiresNetlink(t *testing.T) {
	ctrl, err := NewNftablesController(spec.FamilyIPv6, discardLogger())
	if err != nil {
		t.Skipf("skipping: nftables netlink unavailable: %v", err)
	}
	if ctrl.Stack() != spec.FamilyIPv6 {
		t.Errorf("Stack() = %q, want v6", ctrl.Stack())
	}
}
