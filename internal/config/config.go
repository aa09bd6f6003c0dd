// Package config loads ksync configuration from ksync.yaml, environment
// variables (KSYNC_ prefix), and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/markvault/ksync/internal/sync"
)

// Config is the full daemon and sync configuration.
type Config struct {
	// Karakeep connection.
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`

	// Vault layout.
	VaultDir          string `mapstructure:"vault_dir"`
	SyncFolder        string `mapstructure:"sync_folder"`
	ArchiveFolder     string `mapstructure:"archive_folder"`
	DeletedFolder     string `mapstructure:"deleted_folder"`
	AttachmentsFolder string `mapstructure:"attachments_folder"`

	// Selection.
	ExcludeArchived     bool     `mapstructure:"exclude_archived"`
	OnlyFavorites       bool     `mapstructure:"only_favorites"`
	OnlyWithHighlights  bool     `mapstructure:"only_with_highlights"`
	IncludeTags         []string `mapstructure:"include_tags"`
	ExcludeTags         []string `mapstructure:"exclude_tags"`

	// Behavior.
	UpdateExisting    bool `mapstructure:"update_existing"`
	SyncNotesUpstream bool `mapstructure:"sync_notes_upstream"`
	SyncHighlights    bool `mapstructure:"sync_highlights"`
	DownloadAssets    bool `mapstructure:"download_assets"`

	// Removal handling.
	SyncDeletions  bool   `mapstructure:"sync_deletions"`
	DeletionAction string `mapstructure:"deletion_action"`
	HandleArchived bool   `mapstructure:"handle_archived"`
	ArchivedAction string `mapstructure:"archived_action"`
	DeletedTag     string `mapstructure:"deleted_tag"`
	ArchivedTag    string `mapstructure:"archived_tag"`

	// Daemon.
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	EditDebounce  time.Duration `mapstructure:"edit_debounce"`
	DashboardPort int           `mapstructure:"dashboard_port"`

	// Logging.
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// StatePath stores the last pass outcome. Empty disables it.
	StatePath string `mapstructure:"state_path"`
}

var validActions = map[string]bool{
	"delete": true,
	"move":   true,
	"tag":    true,
	"ignore": true,
}

// Load reads configuration. A .env file in the working directory is
// loaded first so KARAKEEP_API_KEY and friends can live outside the
// YAML file. path overrides the config file location when non-empty.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ksync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ksync")
	}

	v.SetEnvPrefix("ksync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// KARAKEEP_API_KEY is the conventional variable name; honor it when
	// the prefixed form is unset.
	if cfg.APIKey == "" {
		cfg.APIKey = v.GetString("karakeep_api_key")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "https://try.karakeep.app")
	v.SetDefault("vault_dir", ".")
	v.SetDefault("sync_folder", "Karakeep")
	v.SetDefault("archive_folder", "Karakeep/Archive")
	v.SetDefault("deleted_folder", "Karakeep/Deleted")
	v.SetDefault("attachments_folder", "Karakeep/attachments")
	v.SetDefault("update_existing", true)
	v.SetDefault("sync_notes_upstream", true)
	v.SetDefault("sync_highlights", true)
	v.SetDefault("deletion_action", "ignore")
	v.SetDefault("archived_action", "ignore")
	v.SetDefault("deleted_tag", "karakeep-deleted")
	v.SetDefault("archived_tag", "karakeep-archived")
	v.SetDefault("sync_interval", time.Hour)
	v.SetDefault("edit_debounce", 3*time.Second)
	v.SetDefault("dashboard_port", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("state_path", ".ksync-state.json")

	_ = v.BindEnv("karakeep_api_key", "KARAKEEP_API_KEY")
}

// Validate checks action names and required fields.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if !validActions[c.DeletionAction] {
		return fmt.Errorf("invalid deletion_action %q (want delete, move, tag, or ignore)", c.DeletionAction)
	}
	if !validActions[c.ArchivedAction] {
		return fmt.Errorf("invalid archived_action %q (want delete, move, tag, or ignore)", c.ArchivedAction)
	}
	return nil
}

// Policy converts the configuration into sync policy form.
func (c *Config) Policy() sync.Policy {
	return sync.Policy{
		SyncFolder:        c.SyncFolder,
		ArchiveFolder:     c.ArchiveFolder,
		DeletedFolder:     c.DeletedFolder,
		AttachmentsFolder: c.AttachmentsFolder,

		ExcludeArchived:    c.ExcludeArchived,
		OnlyFavorites:      c.OnlyFavorites,
		OnlyWithHighlights: c.OnlyWithHighlights,
		IncludeTags:        c.IncludeTags,
		ExcludeTags:        c.ExcludeTags,

		UpdateExisting:    c.UpdateExisting,
		SyncNotesUpstream: c.SyncNotesUpstream,
		SyncHighlights:    c.SyncHighlights,
		DownloadAssets:    c.DownloadAssets,

		SyncDeletions:  c.SyncDeletions,
		DeletionAction: sync.RemovalAction(c.DeletionAction),
		HandleArchived: c.HandleArchived,
		ArchivedAction: sync.RemovalAction(c.ArchivedAction),
		DeletedTag:     c.DeletedTag,
		ArchivedTag:    c.ArchivedTag,
	}
}
