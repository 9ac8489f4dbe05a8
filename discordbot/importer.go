package discordbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// ImportGuildConfigs writes configs to db, one transaction per guild,
// in guild ID order. Guild IDs must be Discord snowflakes. Import stops
// at the first guild that fails; guilds before it stay committed.
// The number of guilds written is returned.
func ImportGuildConfigs(
	ctx context.Context,
	db DBI,
	configs map[string]GuildConfig,
) (int, error) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = slog.Default()
	}

	imported := 0
	for _, guildID := range sortedKeys(configs) {
		cfg := configs[guildID]
		created, err := discordgo.SnowflakeTimestamp(guildID)
		if err != nil {
			return imported, fmt.Errorf("guild %q: invalid snowflake: %w", guildID, err)
		}
		if err = db.UpsertGuildConfig(ctx, guildID, cfg); err != nil {
			log.ErrorContext(
				ctx,
				"guild import failed",
				"guild_id", guildID,
				"name", cfg.Name,
				tint.Err(err),
			)
			return imported, fmt.Errorf("guild %s (%s): %w", guildID, cfg.Name, err)
		}
		imported++
		log.InfoContext(
			ctx,
			"imported guild",
			"guild_id", guildID,
			"name", cfg.Name,
			"guild_created", created,
			"twitch_notifications", len(cfg.TwitchNotifications),
			"role_choosers", len(cfg.RoleChooser),
		)
	}
	return imported, nil
}

// LoadGuildConfigs reads a config.json file and migrates it to the
// current version. The file's directory is created if needed, but the
// file itself must exist.
func LoadGuildConfigs(ctx context.Context, path string) (map[string]GuildConfig, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s does not exist", path)
		}
		return nil, err
	}

	migrator, err := NewGuildConfigMigrator()
	if err != nil {
		return nil, err
	}
	configs, err := migrator.Migrate(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return configs, nil
}

// Convert migrates cfg's config.json and imports it into cfg's database,
// returning the number of guilds imported.
func Convert(ctx context.Context, cfg *Config) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid config: %w", err)
	}

	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = slog.Default()
		ctx = WithLogger(ctx, log)
	}

	configFile := cfg.ConfigFile()
	log.InfoContext(ctx, "loading guild configs", "path", configFile)
	configs, err := LoadGuildConfigs(ctx, configFile)
	if err != nil {
		return 0, err
	}

	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := sqlDB.Close(); closeErr != nil {
			log.ErrorContext(ctx, "error closing database", tint.Err(closeErr))
		}
	}()

	start := time.Now()
	imported, err := ImportGuildConfigs(
		ctx,
		&transactionTimeoutDB{
			DBI:     NewDatabase(db, log, cfg.DatabaseType == dbTypePostgres),
			timeout: cfg.TransactionTimeout,
		},
		configs,
	)
	log.InfoContext(
		ctx,
		"conversion finished",
		"imported", imported,
		"guilds", len(configs),
		"elapsed", time.Since(start),
	)
	return imported, err
}

// transactionTimeoutDB bounds each guild upsert by timeout.
type transactionTimeoutDB struct {
	DBI
	timeout time.Duration
}

func (t *transactionTimeoutDB) UpsertGuildConfig(
	ctx context.Context,
	guildID string,
	cfg GuildConfig,
) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.DBI.UpsertGuildConfig(ctx, guildID, cfg)
}
