// Package persist writes the live netfilter configuration to disk after
// a successful mutation batch so it can be restored at boot. It is a
// fire-and-forget collaborator: the reconciliation engine never depends
// on its success or failure.
package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultDir is the default directory for saved rule dumps.
const DefaultDir = "/etc/fwctl"

// File names for saved rule dumps inside Config.Dir.
const (
	fileV4  = "rules.v4"
	fileV6  = "rules.v6"
	fileNFT = "ruleset.nft"
)

// Config holds the configuration for rule persistence.
type Config struct {
	// Enabled controls whether mutations are persisted at all.
	// nil means use default (true); explicit false disables persistence.
	Enabled *bool `yaml:"enabled"`

	// Dir is the directory rule dumps are written to.
	// Default: /etc/fwctl
	Dir string `yaml:"dir"`

	// Command, when set, replaces the built-in dump pipeline with an
	// arbitrary save command run through the shell, e.g.
	// "netfilter-persistent save".
	Command string `yaml:"command"`
}

// BoolPtr returns a pointer to the given bool value.
func BoolPtr(v bool) *bool { return &v }

// enabled returns the effective setting: true unless explicitly set to
// false.
func (c *Config) enabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !c.enabled() {
		return nil
	}
	if c.Dir == "" && c.Command == "" {
		return errors.New("persist: config: Dir or Command must be set when enabled")
	}
	return nil
}

// runCommand executes a dump command and returns its stdout. Injected
// so tests run without the netfilter binaries.
type runCommand func(name string, args ...string) ([]byte, error)

// Saver captures the live ruleset to disk.
type Saver struct {
	cfg    Config
	nft    bool // dump via nft instead of iptables-save
	run    runCommand
	logger *slog.Logger
}

// NewSaver creates a Saver. nft selects the nft dump pipeline, matching
// the firewall backend in use.
func NewSaver(cfg Config, nft bool, logger *slog.Logger) *Saver {
	cfg.ApplyDefaults()
	return &Saver{
		cfg: cfg,
		nft: nft,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
		logger: logger.With("component", "persist"),
	}
}

// Save persists the current ruleset. Callers invoke it after every
// successful mutation batch and only log the returned error; a failed
// save never fails the command that triggered it.
func (s *Saver) Save() error {
	if !s.cfg.enabled() {
		return nil
	}

	if s.cfg.Command != "" {
		if _, err := s.run("sh", "-c", s.cfg.Command); err != nil {
			return fmt.Errorf("persist: save command %q: %w", s.cfg.Command, err)
		}
		s.logger.Info("ruleset persisted", "command", s.cfg.Command)
		return nil
	}

	dumps := []struct {
		tool string
		file string
	}{
		{"iptables-save", fileV4},
		{"ip6tables-save", fileV6},
	}
	if s.nft {
		dumps = []struct {
			tool string
			file string
		}{{"nft", fileNFT}}
	}

	for _, d := range dumps {
		var out []byte
		var err error
		if d.tool == "nft" {
			out, err = s.run("nft", "list", "ruleset")
		} else {
			out, err = s.run(d.tool)
		}
		if err != nil {
			return fmt.Errorf("persist: dump via %s: %w", d.tool, err)
		}
		if err := writeFileAtomic(s.cfg.Dir, d.file, out); err != nil {
			return fmt.Errorf("persist: write %s: %w", d.file, err)
		}
	}
	s.logger.Info("ruleset persisted", "dir", s.cfg.Dir)
	return nil
}

// writeFileAtomic writes a rule dump via a temp file and rename so a
// crash mid-save never truncates the previous dump. The directory is
// created on first save; dumps are root-only since they reveal the
// host's filter surface.
func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if !strings.HasSuffix(string(data), "\n") && len(data) > 0 {
		data = append(data, '\n')
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
