package cmd

import (
	"fmt"
	"github.com/NikkyAI/discordbot/discordbot"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func assertLogLevel(t testing.TB, expected slog.Level, v any) {
	t.Helper()

	lvl, ok := v.(*slog.LevelVar)
	require.Truef(t, ok, "could not convert %#v (%T) to *slog.LevelVar", v, v)
	assert.Equal(t, expected, lvl.Level())
}

// clearEnv empties the environment for the duration of the test
func clearEnv(t testing.TB) {
	t.Helper()
	originalEnv := os.Environ()
	t.Cleanup(
		func() {
			os.Clearenv()
			for _, envVar := range originalEnv {
				parts := strings.SplitN(envVar, "=", 2)
				os.Setenv(parts[0], parts[1])
			}
		},
	)
	os.Clearenv()
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	clearEnv(t)

	tmpdir := t.TempDir()

	// Set up the test environment file
	envFile := filepath.Join(tmpdir, "test.env")

	envContent := `
# Database config

BOT_DATABASE=/home/foo/discordbot.sqlite3
BOT_DATABASE_TYPE=sqlite
BOT_DATABASE_LOG_LEVEL=INFO
BOT_DATABASE_SLOW_THRESHOLD=150ms
BOT_TRANSACTION_TIMEOUT=10s
BOT_LOG_LEVEL=WARN

# config.json location, without prefix

CONFIG_DIR=/srv/bot/data
`

	err := os.WriteFile(envFile, []byte(envContent), 0644)
	assert.NoError(t, err)

	t.Cleanup(
		func() {
			configFile = ""
		},
	)
	rootCmd.SetArgs([]string{fmt.Sprintf("--config=%s", envFile), "version"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/home/foo/discordbot.sqlite3", cfg.Database)
	assert.Equal(t, "/home/foo/discordbot.sqlite3", viper.GetString("database"))
	assert.Equal(t, "sqlite", viper.GetString("database_type"))
	assert.Equal(t, "/srv/bot/data", viper.GetString("config_dir"))
	assert.Equal(t, filepath.Join("/srv/bot/data", "config.json"), cfg.ConfigFile())

	assert.Equal(t, "INFO", viper.GetString("database_log_level"))
	assert.Equal(t, "WARN", viper.GetString("log_level"))
	assertLogLevel(t, slog.LevelInfo, cfg.DatabaseLogLevel)
	assertLogLevel(t, slog.LevelWarn, cfg.LogLevel)

	assert.Equal(t, 150*time.Millisecond, viper.GetDuration("database_slow_threshold"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("transaction_timeout"))

	// Unmarshal the configuration into a discordbot.Config struct
	var config discordbot.Config
	err = viper.Unmarshal(
		&config, viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				LevelToStringHookFunc(),
			),
		),
	)
	assert.NoError(t, err)

	assert.Equal(t, "/home/foo/discordbot.sqlite3", config.Database)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, "/srv/bot/data", config.ConfigDir)
	assert.Equal(t, slog.LevelInfo, config.DatabaseLogLevel.Level())
	assert.Equal(t, 150*time.Millisecond, config.DatabaseSlowThreshold)
	assert.Equal(t, 10*time.Second, config.TransactionTimeout)
	assert.Equal(t, slog.LevelWarn, config.LogLevel.Level())
	assert.NoError(t, config.Validate())
}

func TestPrefixedConfigDirTakesPrecedence(t *testing.T) {
	clearEnv(t)

	t.Setenv("CONFIG_DIR", "/unprefixed")
	t.Setenv("BOT_CONFIG_DIR", "/prefixed")

	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/prefixed", cfg.ConfigDir)
}

func TestLevelToStringHookFuncAllocatedTarget(t *testing.T) {
	target := discordbot.DefaultConfig()
	logLevel := target.LogLevel

	decoder, err := mapstructure.NewDecoder(
		&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				LevelToStringHookFunc(),
			),
			Result: target,
		},
	)
	require.NoError(t, err)

	require.NoError(
		t,
		decoder.Decode(
			map[string]any{
				"log_level":          "ERROR",
				"database_log_level": "info",
			},
		),
	)
	assertLogLevel(t, slog.LevelError, target.LogLevel)
	assertLogLevel(t, slog.LevelInfo, target.DatabaseLogLevel)
	assert.Same(t, logLevel, target.LogLevel)
}

func TestLevelToStringHookFunc(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{input: "DEBUG", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "WARN", expected: slog.LevelWarn},
		{input: "ERROR", expected: slog.LevelError},
		{input: "LOUD", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(
			tc.input, func(t *testing.T) {
				var target struct {
					Level *slog.LevelVar `mapstructure:"level"`
				}
				decoder, err := mapstructure.NewDecoder(
					&mapstructure.DecoderConfig{
						DecodeHook: LevelToStringHookFunc(),
						Result:     &target,
					},
				)
				require.NoError(t, err)

				err = decoder.Decode(map[string]any{"level": tc.input})
				if tc.wantErr {
					assert.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tc.expected, target.Level.Level())
			},
		)
	}
}
