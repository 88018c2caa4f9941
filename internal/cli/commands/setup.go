// Package commands implements the fieldshift subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldshift-labs/fieldshift/internal/cli/config"
	"github.com/fieldshift-labs/fieldshift/internal/project"
	"github.com/fieldshift-labs/fieldshift/internal/state"
	"github.com/fieldshift-labs/fieldshift/internal/transfer"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// configKey is used to store config in context.
type configKey struct{}

// ConfigKey returns the context key under which the CLI config is stored.
func ConfigKey() interface{} {
	return configKey{}
}

// getConfig retrieves the config from the command context.
func getConfig(cmd *cobra.Command) *config.Config {
	if c, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		StatePath: config.DefaultStateFile,
		Port:      config.DefaultPort,
		Output:    config.DefaultOutput,
	}
}

// getLogger retrieves the logger from the command context.
func getLogger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

// app bundles the wired collaborators a command needs.
type app struct {
	store    core.Store
	registry *project.Registry
	service  *transfer.Service
}

// openApp opens the state store, migrates it, and wires the transfer
// service. The caller must Close.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}

	registry, err := project.NewRegistry(cfg.PlatformDSN, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		store:    store,
		registry: registry,
		service:  transfer.NewService(store, registry, logger),
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	_ = a.registry.Close()
	_ = a.store.Close()
}
