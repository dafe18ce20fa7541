// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/archivist/lib/engine"
)

// EnvConfig names the environment variable [Load] reads the config
// file path from.
const EnvConfig = "ARCHIVIST_CONFIG"

// DefaultIDPattern accepts workspace identifiers that are safe as a
// single directory name.
const DefaultIDPattern = `^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`

// ErrNoConfig is returned by [Load] when ARCHIVIST_CONFIG is unset.
// Callers that accept running on defaults check for it with errors.Is.
var ErrNoConfig = errors.New("config: " + EnvConfig + " environment variable not set")

// Config is the master configuration for archivist.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Extraction holds the limits applied to every import, including
	// the nested security thresholds and path rules.
	Extraction engine.Policy `yaml:"extraction"`

	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WorkspaceConfig locates the workspace directory.
type WorkspaceConfig struct {
	// Root holds one directory per workspace.
	Root string `yaml:"root"`

	// ID selects the workspace under Root.
	ID string `yaml:"id"`

	// IDPattern is the regular expression ID must match.
	IDPattern string `yaml:"id_pattern"`
}

// CheckpointConfig controls how often extraction progress is saved.
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled"`

	// FileInterval saves after this many extracted files.
	FileInterval int `yaml:"file_interval"`

	// ByteInterval saves after this many extracted bytes.
	ByteInterval int64 `yaml:"byte_interval"`
}

// StorageConfig tunes the object store and metadata database.
type StorageConfig struct {
	// CopyTimeout bounds a single object copy, as a Go duration string.
	CopyTimeout string `yaml:"copy_timeout"`

	// PoolSize is the number of metadata database connections.
	PoolSize int `yaml:"pool_size"`

	// Durable selects synchronous=FULL for the metadata database.
	Durable bool `yaml:"durable"`
}

// LoggingConfig sets the default log level. The --verbose flag
// overrides it.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given, and
// the base every loaded file is merged over.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Workspace: WorkspaceConfig{
			Root:      filepath.Join(homeDir, ".local", "share", "archivist"),
			ID:        "default",
			IDPattern: DefaultIDPattern,
		},
		Extraction: engine.DefaultPolicy(),
		Checkpoint: CheckpointConfig{
			Enabled:      true,
			FileInterval: 100,
			ByteInterval: 1 << 30,
		},
		Storage: StorageConfig{
			CopyTimeout: "300s",
			PoolSize:    4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads the file named by ARCHIVIST_CONFIG. It returns
// [ErrNoConfig] when the variable is unset; there is no search path.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return nil, ErrNoConfig
	}
	return LoadFile(path)
}

// LoadFile merges the YAML file at path over [Default] and expands
// ${HOME}, ${ARCHIVIST_ROOT}, and ${VAR:-default} in path fields.
// Environment variables never override values directly.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Workspace.Root = expandVars(c.Workspace.Root, vars)
	vars["ARCHIVIST_ROOT"] = c.Workspace.Root
	c.Workspace.ID = expandVars(c.Workspace.ID, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars is consulted
// before the process environment.
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

// WorkspaceDir is the directory holding the selected workspace.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.Workspace.Root, c.Workspace.ID)
}

// CopyTimeout parses Storage.CopyTimeout.
func (c *Config) CopyTimeout() (time.Duration, error) {
	duration, err := time.ParseDuration(c.Storage.CopyTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: storage.copy_timeout: %w", err)
	}
	return duration, nil
}

// Validate checks the configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Workspace.Root == "" {
		errs = append(errs, fmt.Errorf("workspace.root is required"))
	}
	pattern, err := regexp.Compile(c.Workspace.IDPattern)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("workspace.id_pattern: %w", err))
	case !pattern.MatchString(c.Workspace.ID):
		errs = append(errs, fmt.Errorf("workspace.id %q does not match %s", c.Workspace.ID, c.Workspace.IDPattern))
	}

	if err := c.Extraction.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Checkpoint.FileInterval <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint.file_interval must be positive"))
	}
	if c.Checkpoint.ByteInterval <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint.byte_interval must be positive"))
	}

	if timeout, err := c.CopyTimeout(); err != nil {
		errs = append(errs, err)
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("storage.copy_timeout must be positive"))
	}
	if c.Storage.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.pool_size must be positive"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// LoadPolicyFile overlays an extraction policy file onto base. YAML
// (.yaml, .yml) and JSON with comments (.json, .jsonc) are accepted.
// Fields absent from the file keep their base values.
func LoadPolicyFile(path string, base engine.Policy) (engine.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("config: reading policy %s: %w", path, err)
	}

	policy := base
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &policy)
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&policy)
	default:
		return engine.Policy{}, fmt.Errorf("config: policy %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return engine.Policy{}, fmt.Errorf("config: parsing policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return engine.Policy{}, fmt.Errorf("config: policy %s: %w", path, err)
	}
	return policy, nil
}
