package discordbot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func DefaultTestConfig(t testing.TB) *Config {
	tmpdir := t.TempDir()
	cfg := DefaultConfig()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	cfg.ConfigDir = filepath.Join(tmpdir, "data")
	cfg.DatabaseType = dbTypeSQLite
	cfg.Database = filepath.Join(tmpdir, fmt.Sprintf("%s.sqlite3", name))
	cfg.DatabaseLogLevel.Set(slog.LevelError)
	cfg.TransactionTimeout = 5 * time.Second
	return cfg
}

// newTestDB creates a migrated database for cfg, closed when the test
// finishes.
func newTestDB(t testing.TB, cfg *Config) (*gorm.DB, DBI) {
	t.Helper()
	db, err := OpenDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(
		func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	return db, NewDatabase(db, slog.Default(), false)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join("data", "config.json"), cfg.ConfigFile())
	assert.Equal(t, DefaultDatabaseLogLevel, cfg.DatabaseLogLevel.Level())
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel.Level())
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr bool
	}{
		{
			name:   "default",
			modify: func(*Config) {},
		},
		{
			name: "postgres",
			modify: func(cfg *Config) {
				cfg.DatabaseType = dbTypePostgres
				cfg.Database = "postgres://localhost/discordbot"
			},
		},
		{
			name: "unsupported database type",
			modify: func(cfg *Config) {
				cfg.DatabaseType = "mysql"
			},
			wantErr: true,
		},
		{
			name: "missing config dir",
			modify: func(cfg *Config) {
				cfg.ConfigDir = ""
			},
			wantErr: true,
		},
		{
			name: "negative transaction timeout",
			modify: func(cfg *Config) {
				cfg.TransactionTimeout = -time.Second
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				cfg := DefaultConfig()
				tc.modify(cfg)
				err := cfg.Validate()
				if tc.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			},
		)
	}
}

func TestConfigLogValue(t *testing.T) {
	cfg := DefaultConfig()
	attrs := map[string]slog.Value{}
	for _, attr := range cfg.LogValue().Group() {
		attrs[attr.Key] = attr.Value
	}

	assert.Equal(t, DefaultConfigDir, attrs["config_dir"].String())
	assert.Equal(t, DefaultDatabaseType, attrs["database_type"].String())
	assert.Equal(t, DefaultDatabaseLogLevel.String(), attrs["database_log_level"].String())
	assert.Equal(t, DefaultLogLevel.String(), attrs["log_level"].String())
}
