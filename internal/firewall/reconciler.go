package firewall

import (
	"fmt"
	"log/slog"

	"github.com/plexsphere/fwctl/internal/spec"
)

// Reconciler drives the filter toward a desired set of open ports. Each
// mutation is independently idempotent: adds are existence-checked,
// deletes loop until the rule is gone.
type Reconciler struct {
	v4       Controller
	v6       Controller
	baseline *Initializer
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler over the two stack controllers.
func NewReconciler(v4, v6 Controller, baseline *Initializer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		v4:       v4,
		v6:       v6,
		baseline: baseline,
		logger:   logger.With("component", "firewall"),
	}
}

// AddPorts opens the ports described by rawSpecs. All specs are parsed
// up front so a malformed spec aborts the command before any mutation.
// The baseline is ensured first, then each spec fans out over its
// protocol set and family set (protocols outer, v4 before v6) with a
// check-then-insert per combination. An already-present rule is a silent
// no-op.
func (r *Reconciler) AddPorts(rawSpecs []string) error {
	specs, err := parseAll(rawSpecs)
	if err != nil {
		return err
	}

	if err := r.baseline.Ensure(); err != nil {
		return err
	}

	for _, ps := range specs {
		for _, proto := range ps.Protocols {
			for _, family := range ps.Families {
				rule := acceptRule(proto, ps)
				if err := insertUnlessPresent(r.controller(family), TableFilter, ChainInput, rule); err != nil {
					return fmt.Errorf("firewall: add %q: %s: %w", ps.String(), family, err)
				}
			}
		}
		r.logger.Info("ports opened", "spec", ps.String())
	}
	return nil
}

// DelPorts closes the ports described by rawSpecs. Deletion repeats per
// combination until the existence check reports absence, so duplicate
// rules left by manual edits are fully cleared. An empty rawSpecs is the
// distinct full-reset form and delegates to Reset.
func (r *Reconciler) DelPorts(rawSpecs []string) error {
	if len(rawSpecs) == 0 {
		return r.Reset()
	}

	specs, err := parseAll(rawSpecs)
	if err != nil {
		return err
	}

	for _, ps := range specs {
		for _, proto := range ps.Protocols {
			for _, family := range ps.Families {
				rule := acceptRule(proto, ps)
				if err := deleteWhilePresent(r.controller(family), TableFilter, ChainInput, rule); err != nil {
					return fmt.Errorf("firewall: del %q: %s: %w", ps.String(), family, err)
				}
			}
		}
		r.logger.Info("ports closed", "spec", ps.String())
	}
	return nil
}

// Reset returns both stacks to allow-all: INPUT and OUTPUT flushed,
// INPUT/OUTPUT/FORWARD policies all ACCEPT. Intentionally more
// destructive than per-spec deletion.
func (r *Reconciler) Reset() error {
	for _, ctrl := range []Controller{r.v4, r.v6} {
		for _, chain := range []string{ChainInput, ChainOutput} {
			if err := ctrl.FlushChain(TableFilter, chain); err != nil {
				return fmt.Errorf("firewall: reset: %s: flush %s: %w", ctrl.Stack(), chain, err)
			}
		}
		for _, chain := range []string{ChainInput, ChainOutput, ChainForward} {
			if err := ctrl.SetPolicy(TableFilter, chain, PolicyAccept); err != nil {
				return fmt.Errorf("firewall: reset: %s: policy %s: %w", ctrl.Stack(), chain, err)
			}
		}
	}
	r.logger.Info("filter reset to allow-all")
	return nil
}

// controller maps a family to its stack controller.
func (r *Reconciler) controller(family spec.Family) Controller {
	if family == spec.FamilyIPv6 {
		return r.v6
	}
	return r.v4
}

// acceptRule builds the INPUT accept rule for one protocol of a spec:
// match (protocol, destination port range, new connection state).
func acceptRule(proto spec.Protocol, ps spec.PortSpec) Rule {
	return Rule{
		Protocol:     string(proto),
		DstPortStart: ps.Start,
		DstPortEnd:   ps.End,
		CtStates:     []string{StateNew},
		Action:       ActionAccept,
	}
}

// parseAll parses every raw spec, failing on the first malformed one so
// no partial application of a bad batch can occur.
func parseAll(raw []string) ([]spec.PortSpec, error) {
	out := make([]spec.PortSpec, 0, len(raw))
	for _, s := range raw {
		ps, err := spec.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("firewall: %w", err)
		}
		out = append(out, ps)
	}
	return out, nil
}
