package status

import (
	"errors"
	"strings"
	"testing"

	"github.com/plexsphere/fwctl/internal/firewall"
	"github.com/plexsphere/fwctl/internal/spec"
)

// fakeController returns canned listings per table/chain.
type fakeController struct {
	family spec.Family
	rules  map[string][]string
	err    error
}

func (f *fakeController) Stack() spec.Family { return f.family }

func (f *fakeController) ListRules(table, chain string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[table+"/"+chain], nil
}

func (f *fakeController) RuleExists(string, string, firewall.Rule) (bool, error) { return false, nil }
func (f *fakeController) InsertRule(string, string, firewall.Rule) error         { return nil }
func (f *fakeController) DeleteRule(string, string, firewall.Rule) error         { return nil }
func (f *fakeController) SetPolicy(string, string, string) error                 { return nil }
func (f *fakeController) FlushChain(string, string) error                        { return nil }

func TestPrintFilterListsBothStacks(t *testing.T) {
	v4 := &fakeController{family: spec.FamilyIPv4, rules: map[string][]string{
		"filter/INPUT":   {"tcp dport 80 ctstate NEW accept"},
		"nat/PREROUTING": {"iif eth0 udp dport 9100-9199 redirect 9000"},
	}}
	v6 := &fakeController{family: spec.FamilyIPv6, rules: map[string][]string{}}

	var buf strings.Builder
	NewPrinter(v4, v6).PrintFilter(&buf)
	out := buf.String()

	for _, want := range []string{
		"v4 filter:",
		"v6 filter:",
		"tcp dport 80 ctstate NEW accept",
		"iif eth0 udp dport 9100-9199 redirect 9000",
		"(none)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintFilter output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintHopsDegradesOnStackError(t *testing.T) {
	v4 := &fakeController{family: spec.FamilyIPv4, rules: map[string][]string{
		"nat/PREROUTING": {"iif eth0 tcp dport 443 redirect 8443"},
	}}
	v6 := &fakeController{family: spec.FamilyIPv6, err: errors.New("no nat support")}

	var buf strings.Builder
	NewPrinter(v4, v6).PrintHops(&buf)
	out := buf.String()

	if !strings.Contains(out, "redirect 8443") {
		t.Errorf("PrintHops output missing v4 redirect:\n%s", out)
	}
	if !strings.Contains(out, "unavailable") {
		t.Errorf("PrintHops output missing v6 degradation marker:\n%s", out)
	}
}
