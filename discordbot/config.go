//nolint:lll // struct tags can't be split
package discordbot

import (
	"log/slog"
	"path/filepath"
	"time"
)

const (
	EnvvarSetEnvPrefix = "DISCORDBOT_ENV_PREFIX"
	DefaultEnvPrefix   = "BOT"

	// EnvvarConfigDir overrides the directory config.json is read from,
	// without any prefix.
	EnvvarConfigDir       = "CONFIG_DIR"
	DefaultConfigDir      = "data"
	DefaultConfigFileName = "config.json"

	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "data/discordbot.sqlite3"
	DefaultLogLevel              = slog.LevelDebug
	DefaultDatabaseLogLevel      = slog.LevelWarn
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond
	DefaultTransactionTimeout    = 30 * time.Second
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/NikkyAI/discordbot/discordbot.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// Config configures the config.json converter and the storage it
// writes to.
type Config struct {
	// ConfigDir is the directory holding config.json
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir" json:"config_dir" binding:"required"`

	// Database connection string
	Database string `yaml:"database" mapstructure:"database" json:"database" binding:"required"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold" binding:"min=0"`

	// TransactionTimeout limits each guild's import transaction
	TransactionTimeout time.Duration `yaml:"transaction_timeout" mapstructure:"transaction_timeout" json:"transaction_timeout" binding:"min=0"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// ConfigFile returns the path of config.json inside ConfigDir.
func (c Config) ConfigFile() string {
	return filepath.Join(c.ConfigDir, DefaultConfigFileName)
}

// Validate checks the config's field constraints.
func (c Config) Validate() error {
	return structValidator.Struct(c)
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)

	return &Config{
		ConfigDir:             DefaultConfigDir,
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		TransactionTimeout:    DefaultTransactionTimeout,
		LogLevel:              mainLogLevel,
	}
}
