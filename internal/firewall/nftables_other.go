//go:build !linux

package firewall

import (
	"fmt"
	"log/slog"

	"github.com/plexsphere/fwctl/internal/spec"
)

// newNftablesController reports the nftables backend as unavailable on
// non-Linux platforms.
func newNftablesController(family spec.Family, _ *slog.Logger) (Controller, error) {
	return nil, fmt.Errorf("firewall: nftables: %s: backend requires linux", family)
}
