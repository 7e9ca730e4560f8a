// Package hop manages NAT pre-routing port redirections: inbound traffic
// matching a port spec on an interface has its destination port rewritten
// to a fixed local port. IPv4 NAT failures are fatal; IPv6 NAT support is
// environment-dependent and treated as best-effort.
package hop

import "errors"

// IfaceEnvVar is the environment variable that overrides default-route
// interface detection.
const IfaceEnvVar = "FWCTL_HOP_IFACE"

// DefaultFallbackIface is used when no interface is given, the
// environment override is unset, and default-route detection fails.
const DefaultFallbackIface = "eth0"

// Config holds the configuration for the port hop manager.
type Config struct {
	// FallbackIface is the interface used when default-route detection
	// fails. Default: "eth0".
	FallbackIface string `yaml:"fallback_iface"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.FallbackIface == "" {
		c.FallbackIface = DefaultFallbackIface
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.FallbackIface == "" {
		return errors.New("hop: config: FallbackIface must not be empty")
	}
	return nil
}
