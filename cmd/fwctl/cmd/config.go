package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/fwctl/internal/firewall"
	"github.com/plexsphere/fwctl/internal/hop"
	"github.com/plexsphere/fwctl/internal/lockfile"
	"github.com/plexsphere/fwctl/internal/persist"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// ToolConfig is the top-level configuration for fwctl, populated from a
// YAML configuration file via ParseConfig.
type ToolConfig struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LockPath is the advisory lock serializing mutating commands.
	// Default: /run/fwctl.lock
	LockPath string `yaml:"lock_path"`

	Firewall firewall.Config `yaml:"firewall"`
	Hop      hop.Config      `yaml:"hop"`
	Persist  persist.Config  `yaml:"persist"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *ToolConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LockPath == "" {
		c.LockPath = lockfile.DefaultPath
	}
	c.Firewall.ApplyDefaults()
	c.Hop.ApplyDefaults()
	c.Persist.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *ToolConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	if err := c.Firewall.Validate(); err != nil {
		return err
	}
	if err := c.Hop.Validate(); err != nil {
		return err
	}
	if err := c.Persist.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseConfig loads the configuration file, applies defaults, and
// validates. A missing file is not an error: fwctl runs with defaults
// unless told otherwise.
func ParseConfig(path string) (ToolConfig, error) {
	var cfg ToolConfig

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
