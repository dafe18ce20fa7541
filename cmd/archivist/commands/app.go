// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/config"
	"github.com/bureau-foundation/archivist/lib/workspace"
)

// App carries the process-level dependencies of every command. The
// zero value writes to the real stdout and stderr.
type App struct {
	Stdout io.Writer
	Clock  clock.Clock

	// NewLogger builds the command logger at the configured level.
	// Defaults to cli.NewCommandLogger.
	NewLogger func(level slog.Level) *slog.Logger

	// Styles renders terminal reports. Defaults to cli.NewStyles.
	Styles *cli.Styles
}

func (a *App) stdout() io.Writer {
	if a.Stdout != nil {
		return a.Stdout
	}
	return os.Stdout
}

func (a *App) clock() clock.Clock {
	if a.Clock != nil {
		return a.Clock
	}
	return clock.Real()
}

func (a *App) styles() cli.Styles {
	if a.Styles != nil {
		return *a.Styles
	}
	return cli.NewStyles()
}

func (a *App) logger(level slog.Level) *slog.Logger {
	if a.NewLogger != nil {
		return a.NewLogger(level)
	}
	return cli.NewCommandLogger(level)
}

// globalOptions are the flags every workspace command accepts.
type globalOptions struct {
	configPath string
	root       string
	workspace  string
	verbose    bool
	json       bool
}

func (o *globalOptions) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "configuration file (default $"+config.EnvConfig+", else built-in defaults)")
	flagSet.StringVar(&o.root, "root", "", "directory holding workspaces (overrides workspace.root)")
	flagSet.StringVarP(&o.workspace, "workspace", "w", "", "workspace id (overrides workspace.id)")
	flagSet.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&o.json, "json", false, "output as JSON")
}

func newFlagSet(name string, options *globalOptions) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	options.bind(flagSet)
	return flagSet
}

// loadConfig reads --config, then $ARCHIVIST_CONFIG, then falls back
// to the defaults, and applies the flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
		if errors.Is(err, config.ErrNoConfig) {
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.Workspace.Root = o.root
	}
	if o.workspace != "" {
		cfg.Workspace.ID = o.workspace
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// workspaceSession is an opened workspace for the duration of one command.
type workspaceSession struct {
	config    *config.Config
	workspace *workspace.Workspace
	logger    *slog.Logger
}

func (a *App) openSession(options *globalOptions) (*workspaceSession, error) {
	cfg, err := options.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := cli.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := a.logger(level)
	copyTimeout, err := cfg.CopyTimeout()
	if err != nil {
		return nil, err
	}

	opened, err := workspace.Open(workspace.Config{
		Dir:         cfg.WorkspaceDir(),
		ID:          cfg.Workspace.ID,
		Clock:       a.clock(),
		Logger:      logger,
		CopyTimeout: copyTimeout,
		BufferSize:  cfg.Extraction.BufferSize,
		PoolSize:    cfg.Storage.PoolSize,
		Durable:     cfg.Storage.Durable,
		Checkpoints: workspace.CheckpointConfig{
			Enabled:      cfg.Checkpoint.Enabled,
			FileInterval: int64(cfg.Checkpoint.FileInterval),
			ByteInterval: cfg.Checkpoint.ByteInterval,
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("workspace opened", "workspace_id", cfg.Workspace.ID, "dir", cfg.WorkspaceDir())
	return &workspaceSession{config: cfg, workspace: opened, logger: logger}, nil
}

func (s *workspaceSession) Close() error {
	return s.workspace.Close()
}
