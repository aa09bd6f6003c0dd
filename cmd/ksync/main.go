package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markvault/ksync/internal/config"
	"github.com/markvault/ksync/internal/karakeep"
	"github.com/markvault/ksync/internal/logger"
	"github.com/markvault/ksync/internal/sync"
	"github.com/markvault/ksync/internal/vault"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ksync",
	Short: "Sync a Karakeep bookmark collection into a Markdown vault",
	Long: `ksync mirrors a Karakeep (Hoarder) bookmark collection into a folder of
Markdown documents and pushes local note edits back upstream.

Each bookmark becomes one document with YAML frontmatter, a rendered body,
and an editable "## Notes" section. Edits under that heading flow back to
Karakeep; everything else is regenerated from the remote state.

Configuration is read from ksync.yaml (working directory or
~/.config/ksync), KSYNC_* environment variables, and an optional .env
file for the API key.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ksync.yaml)")
}

// setup loads configuration and builds the logger, client, vault store,
// and driver shared by every command.
func setup(onEvent func(sync.Event)) (*config.Config, logger.Logger, *vault.Store, *sync.Syncer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: true,
		File:   cfg.LogFile,
	})

	store, err := vault.Open(cfg.VaultDir)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open vault: %w", err)
	}

	client := karakeep.New(cfg.Endpoint, cfg.APIKey)
	syncer := sync.New(client, store, cfg.Policy(), sync.Options{
		HasCredentials: cfg.APIKey != "",
		StatePath:      statePath(cfg, store),
		OnEvent:        onEvent,
		Logger:         log,
	})

	return cfg, log, store, syncer, nil
}

// statePath resolves the configured state file against the vault root so
// relative paths land next to the documents they describe.
func statePath(cfg *config.Config, store *vault.Store) string {
	if cfg.StatePath == "" || filepath.IsAbs(cfg.StatePath) {
		return cfg.StatePath
	}
	return store.Abs(cfg.StatePath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
