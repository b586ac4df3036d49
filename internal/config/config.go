// Package config holds Hull's ambient, non-manifest configuration: ports,
// paths, log level, runtime backend selection, and the build pipeline's
// compiler environment. It never substitutes for the manifest's
// capability grants — those are extracted from the app, not configured
// by the host operator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"hull/internal/logging"
)

// Config holds all of Hull's host-level configuration.
type Config struct {
	// Serve settings
	Port int    `yaml:"port" json:"port"`
	Addr string `yaml:"addr" json:"addr"`

	// DatabasePath is the SQLite file the app's DB capability opens.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// RuntimeBackend selects the scripting backend: "yaegi" or "goja".
	RuntimeBackend string `yaml:"runtime_backend" json:"runtime_backend"`

	// MemoryCapBytes and InstructionBudget seed runtime.Config defaults;
	// zero means "let the backend pick its own default".
	MemoryCapBytes    int64  `yaml:"memory_cap_bytes" json:"memory_cap_bytes"`
	InstructionBudget uint64 `yaml:"instruction_budget" json:"instruction_budget"`

	// PlatformKeyPath and DevKeyPath locate the ed25519 keys used by
	// `sign-platform`/`keygen`/`build` and consulted by `verify`.
	PlatformKeyPath string `yaml:"platform_key_path" json:"platform_key_path"`
	DevKeyPath      string `yaml:"dev_key_path" json:"dev_key_path"`

	// Logging configures the host's category logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Build configures the native-trampoline compile step (§4.8).
	Build BuildConfig `yaml:"build" json:"build"`
}

// DefaultConfig returns conservative defaults: a loopback address, a
// project-local database, Backend B (goja) since it carries a real
// per-request instruction budget, and logging off by default (production
// mode, matching the teacher's debug-mode gate default).
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		Addr:           "127.0.0.1:8080",
		DatabasePath:   "data/hull.db",
		RuntimeBackend: "goja",
		PlatformKeyPath: "keys/platform.key",
		DevKeyPath:      "keys/dev.key",
		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
		Build: DefaultBuildConfig(),
	}
}

// Load reads path as YAML over DefaultConfig's values, then applies the
// fixed environment-variable whitelist (§6: HULL_PORT, HULL_DB,
// HULL_LOG_LEVEL — read before manifest extraction, before sandbox). A
// missing file is not an error: defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logging.BootInfo("config: %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	logging.BootInfo("config loaded: addr=%s db=%s backend=%s", cfg.Addr, cfg.DatabasePath, cfg.RuntimeBackend)
	return cfg, nil
}

// applyEnvOverrides reads exactly the whitelist §6 names: no other
// environment variable is ever consulted by the host before the
// manifest is extracted and the sandbox applied.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("HULL_PORT"); port != "" {
		c.Addr = joinHostPort(c.Addr, port)
	}
	if db := os.Getenv("HULL_DB"); db != "" {
		c.DatabasePath = db
	}
	if level := os.Getenv("HULL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = level == "debug"
	}
}

func joinHostPort(addr, port string) string {
	host := addr
	if idx := lastColon(addr); idx >= 0 {
		host = addr[:idx]
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return host + ":" + port
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

// Save writes c to path as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// InstructionBudgetOrDefault returns c.InstructionBudget, or def if unset.
func (c *Config) InstructionBudgetOrDefault(def uint64) uint64 {
	if c.InstructionBudget == 0 {
		return def
	}
	return c.InstructionBudget
}

// StartupTimeout is 30 seconds, the same value as the default of the
// --startup-timeout flag; the serve command reads the flag, not this
// constant.
const StartupTimeout = 30 * time.Second
