package hop

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/plexsphere/fwctl/internal/firewall"
	"github.com/plexsphere/fwctl/internal/spec"
)

// IfaceResolver returns the host's current default-route interface.
// Resolution runs once per invocation and is never cached across runs.
type IfaceResolver func() (string, error)

// Manager adds and removes NAT pre-routing redirect rules independently
// per stack. Redirect state moves Absent -> Add -> Present -> Delete ->
// Absent; re-adding an existing redirection is an idempotent no-op.
type Manager struct {
	v4      firewall.Controller
	v6      firewall.Controller
	resolve IfaceResolver
	cfg     Config
	logger  *slog.Logger
}

// NewManager creates a Manager. resolve may be nil, in which case the
// platform default-route resolver is used.
func NewManager(v4, v6 firewall.Controller, resolve IfaceResolver, cfg Config, logger *slog.Logger) *Manager {
	cfg.ApplyDefaults()
	if resolve == nil {
		resolve = defaultRouteIface
	}
	return &Manager{
		v4:      v4,
		v6:      v6,
		resolve: resolve,
		cfg:     cfg,
		logger:  logger.With("component", "hop"),
	}
}

// Add installs the redirection described by rule. An empty rule.Iface is
// resolved via the environment override, then the default route, then
// the configured fallback. Insertion is existence-checked per protocol
// and family; a v6 failure is logged and swallowed because NAT over IPv6
// is environment-dependent.
func (m *Manager) Add(rule spec.HopRule) error {
	iface := m.resolveIface(rule.Iface)

	for _, proto := range rule.From.Protocols {
		for _, family := range rule.From.Families {
			r := redirectRule(iface, proto, rule)
			ctrl := m.controller(family)
			if err := insertUnlessPresent(ctrl, r); err != nil {
				if family == spec.FamilyIPv6 {
					m.logger.Warn("skipping v6 redirect, NAT over IPv6 unavailable", "rule", r.String(), "error", err)
					continue
				}
				return fmt.Errorf("hop: add: %w", err)
			}
		}
	}

	m.logger.Info("redirection added",
		"from", rule.From.String(),
		"to_port", rule.ToPort,
		"iface", iface,
	)
	return nil
}

// Delete removes the redirection described by rule, looping per
// combination until the existence check reports absence. Same v4/v6
// error policy as Add.
func (m *Manager) Delete(rule spec.HopRule) error {
	iface := m.resolveIface(rule.Iface)

	for _, proto := range rule.From.Protocols {
		for _, family := range rule.From.Families {
			r := redirectRule(iface, proto, rule)
			ctrl := m.controller(family)
			if err := deleteWhilePresent(ctrl, r); err != nil {
				if family == spec.FamilyIPv6 {
					m.logger.Warn("skipping v6 redirect removal", "rule", r.String(), "error", err)
					continue
				}
				return fmt.Errorf("hop: del: %w", err)
			}
		}
	}

	m.logger.Info("redirection removed",
		"from", rule.From.String(),
		"to_port", rule.ToPort,
		"iface", iface,
	)
	return nil
}

// Flush clears every redirection by flushing the NAT pre-routing chain
// on both stacks. Distinct from single-rule deletion and intentionally
// destructive. The v6 flush is best-effort.
func (m *Manager) Flush() error {
	if err := m.v4.FlushChain(firewall.TableNAT, firewall.ChainPrerouting); err != nil {
		return fmt.Errorf("hop: flush: %w", err)
	}
	if err := m.v6.FlushChain(firewall.TableNAT, firewall.ChainPrerouting); err != nil {
		m.logger.Warn("skipping v6 NAT flush", "error", err)
	}
	m.logger.Info("all redirections flushed")
	return nil
}

// List returns the active pre-routing rules per stack for status output.
// A stack that cannot be listed yields a nil slice, not an error.
func (m *Manager) List() map[spec.Family][]string {
	out := make(map[spec.Family][]string, 2)
	for _, ctrl := range []firewall.Controller{m.v4, m.v6} {
		rules, err := ctrl.ListRules(firewall.TableNAT, firewall.ChainPrerouting)
		if err != nil {
			m.logger.Warn("cannot list NAT rules", "stack", ctrl.Stack(), "error", err)
			continue
		}
		out[ctrl.Stack()] = rules
	}
	return out
}

// resolveIface picks the interface for a redirection: explicit argument,
// environment override, default-route detection, configured fallback.
func (m *Manager) resolveIface(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(IfaceEnvVar); env != "" {
		return env
	}
	iface, err := m.resolve()
	if err != nil || iface == "" {
		m.logger.Warn("default route detection failed, using fallback interface",
			"fallback", m.cfg.FallbackIface,
			"error", err,
		)
		return m.cfg.FallbackIface
	}
	return iface
}

func (m *Manager) controller(family spec.Family) firewall.Controller {
	if family == spec.FamilyIPv6 {
		return m.v6
	}
	return m.v4
}

// redirectRule builds the NAT pre-routing rule for one protocol of a hop.
func redirectRule(iface string, proto spec.Protocol, rule spec.HopRule) firewall.Rule {
	return firewall.Rule{
		InInterface:  iface,
		Protocol:     string(proto),
		DstPortStart: rule.From.Start,
		DstPortEnd:   rule.From.End,
		Action:       firewall.ActionRedirect,
		RedirectPort: rule.ToPort,
	}
}

// inspect is the shared read side of the NAT check-then-act helpers.
var inspect firewall.Inspector

// insertUnlessPresent mirrors the filter engine's check-then-act
// primitive for the NAT table.
func insertUnlessPresent(ctrl firewall.Controller, rule firewall.Rule) error {
	ok, err := inspect.RuleExists(ctrl, firewall.TableNAT, firewall.ChainPrerouting, rule)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := ctrl.InsertRule(firewall.TableNAT, firewall.ChainPrerouting, rule); err != nil {
		return fmt.Errorf("insert rule %q: %w", rule.String(), err)
	}
	return nil
}

// deleteWhilePresent loops until the rule is fully absent, clearing
// duplicates from manual edits.
func deleteWhilePresent(ctrl firewall.Controller, rule firewall.Rule) error {
	for {
		ok, err := inspect.RuleExists(ctrl, firewall.TableNAT, firewall.ChainPrerouting, rule)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := ctrl.DeleteRule(firewall.TableNAT, firewall.ChainPrerouting, rule); err != nil {
			return fmt.Errorf("delete rule %q: %w", rule.String(), err)
		}
	}
}
