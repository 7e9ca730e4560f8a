package firewall

import (
	"fmt"
	"log/slog"

	"github.com/plexsphere/fwctl/internal/spec"
)

// NewController constructs the configured backend controller for one
// stack. Construction failure means the backend's tooling is unavailable
// (binary missing, no netlink support) and callers treat it as a fatal
// precondition.
func NewController(cfg Config, family spec.Family, logger *slog.Logger) (Controller, error) {
	cfg.ApplyDefaults()
	switch cfg.Backend {
	case BackendNftables:
		return newNftablesController(family, logger)
	case BackendIPTables:
		return NewIPTablesController(family, logger)
	default:
		return nil, fmt.Errorf("firewall: unknown backend %q", cfg.Backend)
	}
}
