// Package firewall implements the rule reconciliation engine: baseline
// default-deny initialization and idempotent add/delete of inbound accept
// rules across the v4 and v6 packet filter stacks.
package firewall

import "fmt"

// Backends selectable via Config.Backend.
const (
	// BackendIPTables drives the iptables/ip6tables binaries.
	BackendIPTables = "iptables"
	// BackendNftables drives nftables directly over netlink.
	BackendNftables = "nftables"
)

// Config holds the configuration for the firewall engine.
type Config struct {
	// Backend selects the kernel filter backend: "iptables" or
	// "nftables". Default: "iptables".
	Backend string `yaml:"backend"`

	// AllowDHCP controls whether the baseline includes the DHCP client
	// allow rules (v4 udp 67->68, v6 udp 547->546).
	// nil means use default (true); explicit false disables them.
	AllowDHCP *bool `yaml:"allow_dhcp"`
}

// BoolPtr returns a pointer to the given bool value.
func BoolPtr(v bool) *bool { return &v }

// dhcpAllowed returns the effective DHCP setting: true unless explicitly
// set to false.
func (c *Config) dhcpAllowed() bool {
	if c.AllowDHCP == nil {
		return true
	}
	return *c.AllowDHCP
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendIPTables
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Backend != BackendIPTables && c.Backend != BackendNftables {
		return fmt.Errorf("firewall: config: invalid backend %q", c.Backend)
	}
	return nil
}
