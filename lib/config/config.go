// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is a source checkout run from the repository root.
	Development Environment = "development"
	// Production is an installed application bundle.
	Production Environment = "production"
)

// ConfigEnvVar names the environment variable read by Load.
const ConfigEnvVar = "CENTRAL_CONFIG"

// Config is the master configuration for the orchestration core.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Root is the base directory for central's own state (debug log,
	// journals). Available to other path fields as ${CENTRAL_ROOT}.
	Root string `yaml:"root"`

	Worker   WorkerConfig   `yaml:"worker"`
	Terminal TerminalConfig `yaml:"terminal"`
	Logging  LoggingConfig  `yaml:"logging"`
	Journal  JournalConfig  `yaml:"journal"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Worker   *WorkerConfig   `yaml:"worker,omitempty"`
	Terminal *TerminalConfig `yaml:"terminal,omitempty"`
	Logging  *LoggingConfig  `yaml:"logging,omitempty"`
	Journal  *JournalConfig  `yaml:"journal,omitempty"`
}

// WorkerConfig describes how agent worker processes are launched.
type WorkerConfig struct {
	// Interpreter is the argv prefix; the resolved script path is
	// appended. Default: node --import tsx
	Interpreter []string `yaml:"interpreter"`

	// Script is the worker entry point relative to the development
	// root (parent of the working directory) or to the directory of
	// the running executable.
	// Default: sidecar/src/session-worker.ts
	Script string `yaml:"script"`

	// CACertificates, when set, is passed as NODE_EXTRA_CA_CERTS
	// unless the caller's environment already sets it.
	CACertificates string `yaml:"ca_certificates"`

	// EndGrace is how long EndSession waits for the worker to exit
	// on its own before force-killing it. Default: 2s
	EndGrace string `yaml:"end_grace"`
}

// TerminalConfig describes PTY sessions.
type TerminalConfig struct {
	// Command is the argv run in each terminal. Empty means $SHELL,
	// falling back to /bin/sh.
	Command []string `yaml:"command"`

	// Term is the TERM value given to the child. Default: xterm-256color
	Term string `yaml:"term"`

	// ReadChunkSize bounds a single read from the PTY master.
	// Default: 4096
	ReadChunkSize int `yaml:"read_chunk_size"`

	// ScrollbackBytes sizes the per-terminal replay ring.
	// Default: 1 MiB
	ScrollbackBytes int `yaml:"scrollback_bytes"`
}

// LoggingConfig configures lib/logging.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// File receives every record at debug level as JSON.
	// Default: ${CENTRAL_ROOT}/central-debug.log in development.
	File string `yaml:"file"`
}

// JournalConfig configures the optional event journal.
type JournalConfig struct {
	// Path enables journaling of forwarded events when non-empty.
	Path string `yaml:"path"`

	// Compression is zstd, lz4, or none. Default: zstd
	Compression string `yaml:"compression"`

	// Recipients are age public keys (age1...). When non-empty the
	// journal body is encrypted to them.
	Recipients []string `yaml:"recipients"`
}

const defaultDebugLog = "${CENTRAL_ROOT}/central-debug.log"

// Default returns the default configuration: a development checkout
// with no config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "central")

	return &Config{
		Environment: Development,
		Root:        defaultRoot,
		Worker: WorkerConfig{
			Interpreter: []string{"node", "--import", "tsx"},
			Script:      "sidecar/src/session-worker.ts",
			EndGrace:    "2s",
		},
		Terminal: TerminalConfig{
			Term:            "xterm-256color",
			ReadChunkSize:   4096,
			ScrollbackBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  defaultDebugLog,
		},
		Journal: JournalConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the file named by CENTRAL_CONFIG.
// There is no discovery: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your central.yaml config file, or use --config flag", ConfigEnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment overrides, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// Finalize applies overrides and variable expansion to a Config that
// was built in code rather than loaded from a file.
func (c *Config) Finalize() *Config {
	c.applyEnvironmentOverrides()
	c.expandVariables()
	return c
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Installed bundles do not write a debug log unless asked.
		if c.Logging.File == defaultDebugLog {
			c.Logging.File = ""
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Worker != nil {
		if len(overrides.Worker.Interpreter) > 0 {
			c.Worker.Interpreter = overrides.Worker.Interpreter
		}
		if overrides.Worker.Script != "" {
			c.Worker.Script = overrides.Worker.Script
		}
		if overrides.Worker.CACertificates != "" {
			c.Worker.CACertificates = overrides.Worker.CACertificates
		}
		if overrides.Worker.EndGrace != "" {
			c.Worker.EndGrace = overrides.Worker.EndGrace
		}
	}

	if overrides.Terminal != nil {
		if len(overrides.Terminal.Command) > 0 {
			c.Terminal.Command = overrides.Terminal.Command
		}
		if overrides.Terminal.Term != "" {
			c.Terminal.Term = overrides.Terminal.Term
		}
		if overrides.Terminal.ReadChunkSize != 0 {
			c.Terminal.ReadChunkSize = overrides.Terminal.ReadChunkSize
		}
		if overrides.Terminal.ScrollbackBytes != 0 {
			c.Terminal.ScrollbackBytes = overrides.Terminal.ScrollbackBytes
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		// An empty file in an override section disables the debug log.
		c.Logging.File = overrides.Logging.File
	}

	if overrides.Journal != nil {
		if overrides.Journal.Path != "" {
			c.Journal.Path = overrides.Journal.Path
		}
		if overrides.Journal.Compression != "" {
			c.Journal.Compression = overrides.Journal.Compression
		}
		if len(overrides.Journal.Recipients) > 0 {
			c.Journal.Recipients = overrides.Journal.Recipients
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CENTRAL_ROOT": c.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Root = expandVars(c.Root, vars)
	vars["CENTRAL_ROOT"] = c.Root

	c.Worker.CACertificates = expandVars(c.Worker.CACertificates, vars)
	c.Logging.File = expandVars(c.Logging.File, vars)
	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// EndGraceDuration parses Worker.EndGrace. Validate has already
// rejected malformed values, so a parse failure here yields zero.
func (c *Config) EndGraceDuration() time.Duration {
	duration, err := time.ParseDuration(c.Worker.EndGrace)
	if err != nil {
		return 0
	}
	return duration
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if len(c.Worker.Interpreter) == 0 {
		errs = append(errs, fmt.Errorf("worker.interpreter is required"))
	}
	if c.Worker.Script == "" {
		errs = append(errs, fmt.Errorf("worker.script is required"))
	} else if filepath.IsAbs(c.Worker.Script) {
		errs = append(errs, fmt.Errorf("worker.script must be relative, got %s", c.Worker.Script))
	}
	if c.Worker.EndGrace != "" {
		if duration, err := time.ParseDuration(c.Worker.EndGrace); err != nil {
			errs = append(errs, fmt.Errorf("worker.end_grace: %w", err))
		} else if duration < 0 {
			errs = append(errs, fmt.Errorf("worker.end_grace must not be negative"))
		}
	}

	if c.Terminal.Term == "" {
		errs = append(errs, fmt.Errorf("terminal.term is required"))
	}
	if c.Terminal.ReadChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("terminal.read_chunk_size must be positive"))
	}
	if c.Terminal.ScrollbackBytes < 0 {
		errs = append(errs, fmt.Errorf("terminal.scrollback_bytes must not be negative"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}

	compressionValues := []string{"zstd", "lz4", "none"}
	if !contains(compressionValues, c.Journal.Compression) {
		errs = append(errs, fmt.Errorf("journal.compression must be one of: %v", compressionValues))
	}
	for _, recipient := range c.Journal.Recipients {
		if !strings.HasPrefix(recipient, "age1") {
			errs = append(errs, fmt.Errorf("journal.recipients: %q is not an age public key", recipient))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
