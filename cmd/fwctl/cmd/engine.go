package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/plexsphere/fwctl/internal/firewall"
	"github.com/plexsphere/fwctl/internal/hop"
	"github.com/plexsphere/fwctl/internal/lockfile"
	"github.com/plexsphere/fwctl/internal/persist"
	"github.com/plexsphere/fwctl/internal/spec"
	"github.com/plexsphere/fwctl/internal/status"
)

// engine wires the configured backend controllers to the reconciliation
// components for one CLI invocation. Everything is recomputed from live
// kernel state per run; nothing is cached across invocations.
type engine struct {
	cfg        ToolConfig
	logger     *slog.Logger
	reconciler *firewall.Reconciler
	hops       *hop.Manager
	saver      *persist.Saver
	printer    *status.Printer
}

// newEngine parses config, sets up logging, enforces the privilege and
// tooling preconditions, and constructs the per-stack controllers.
// Every command requires root: read-only listings still query kernel
// filter state. Backend construction failure is the missing-tooling
// case and is fatal before any spec argument is parsed.
func newEngine() (*engine, error) {
	cfg, err := ParseConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := setupLogger(cfg.LogLevel)

	if os.Geteuid() != 0 {
		return nil, fmt.Errorf("fwctl must run as root (euid %d)", os.Geteuid())
	}

	v4, err := firewall.NewController(cfg.Firewall, spec.FamilyIPv4, logger)
	if err != nil {
		return nil, fmt.Errorf("filter tooling unavailable: %w", err)
	}
	v6, err := firewall.NewController(cfg.Firewall, spec.FamilyIPv6, logger)
	if err != nil {
		return nil, fmt.Errorf("filter tooling unavailable: %w", err)
	}

	baseline := firewall.NewInitializer(v4, v6, cfg.Firewall, logger)
	return &engine{
		cfg:        cfg,
		logger:     logger,
		reconciler: firewall.NewReconciler(v4, v6, baseline, logger),
		hops:       hop.NewManager(v4, v6, nil, cfg.Hop, logger),
		saver:      persist.NewSaver(cfg.Persist, cfg.Firewall.Backend == firewall.BackendNftables, logger),
		printer:    status.NewPrinter(v4, v6),
	}, nil
}

// lock serializes this command's check-then-act sequence against other
// fwctl invocations.
func (e *engine) lock() (*lockfile.Lock, error) {
	l, err := lockfile.Acquire(e.cfg.LockPath)
	if err != nil {
		return nil, fmt.Errorf("fwctl: %w", err)
	}
	return l, nil
}

// persistRules triggers the post-mutation save. Persistence is
// fire-and-forget: a failed save is logged, never fatal.
func (e *engine) persistRules() {
	if err := e.saver.Save(); err != nil {
		e.logger.Warn("ruleset not persisted", "error", err)
	}
}
