package firewall

import (
	"fmt"
	"reflect"

	"github.com/plexsphere/fwctl/internal/spec"
)

// fakeController is an in-memory Controller. It keeps real chain and
// policy state so tests can assert on the resulting rule set, and
// supports configurable per-method error returns.
type fakeController struct {
	family   spec.Family
	chains   map[string][]Rule // "table/chain" -> rules in order
	policies map[string]string // "table/chain" -> policy

	listErr   error
	existsErr error
	insertErr error
	deleteErr error
	policyErr error
	flushErr  error
}

func newFakeController(family spec.Family) *fakeController {
	return &fakeController{
		family:   family,
		chains:   make(map[string][]Rule),
		policies: make(map[string]string),
	}
}

func key(table, chain string) string {
	return table + "/" + chain
}

func (f *fakeController) Stack() spec.Family {
	return f.family
}

func (f *fakeController) ListRules(table, chain string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	rules := f.chains[key(table, chain)]
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.String())
	}
	return out, nil
}

func (f *fakeController) RuleExists(table, chain string, rule Rule) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, r := range f.chains[key(table, chain)] {
		if reflect.DeepEqual(r, rule) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeController) InsertRule(table, chain string, rule Rule) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	k := key(table, chain)
	f.chains[k] = append(f.chains[k], rule)
	return nil
}

func (f *fakeController) DeleteRule(table, chain string, rule Rule) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	k := key(table, chain)
	for i, r := range f.chains[k] {
		if reflect.DeepEqual(r, rule) {
			f.chains[k] = append(f.chains[k][:i:i], f.chains[k][i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %q not found in %s", rule.String(), k)
}

func (f *fakeController) SetPolicy(table, chain, policy string) error {
	if f.policyErr != nil {
		return f.policyErr
	}
	f.policies[key(table, chain)] = policy
	return nil
}

func (f *fakeController) FlushChain(table, chain string) error {
	if f.flushErr != nil {
		return f.flushErr
	}
	f.chains[key(table, chain)] = nil
	return nil
}

// count returns how many instances of rule are present.
func (f *fakeController) count(table, chain string, rule Rule) int {
	n := 0
	for _, r := range f.chains[key(table, chain)] {
		if reflect.DeepEqual(r, rule) {
			n++
		}
	}
	return n
}
