package firewall

import "testing"

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Backend != BackendIPTables {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendIPTables)
	}
	if !cfg.dhcpAllowed() {
		t.Error("dhcpAllowed() = false on zero-valued config, want true")
	}
}

func TestConfigApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{Backend: BackendNftables, AllowDHCP: BoolPtr(false)}
	cfg.ApplyDefaults()
	if cfg.Backend != BackendNftables {
		t.Errorf("Backend = %q, want explicit %q preserved", cfg.Backend, BackendNftables)
	}
	if cfg.dhcpAllowed() {
		t.Error("dhcpAllowed() flipped to true despite explicit config")
	}
}

func TestConfigDHCPDefaultIndependentOfBackend(t *testing.T) {
	cfg := Config{Backend: BackendNftables}
	cfg.ApplyDefaults()
	if !cfg.dhcpAllowed() {
		t.Error("dhcpAllowed() = false when backend is set and allow_dhcp omitted, want true")
	}
}

func TestConfigValidate(t *testing.T) {
	for _, backend := range []string{BackendIPTables, BackendNftables} {
		cfg := Config{Backend: backend}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() rejected backend %q: %v", backend, err)
		}
	}
	cfg := Config{Backend: "pf"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted unknown backend")
	}
}
