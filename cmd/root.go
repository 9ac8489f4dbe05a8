package cmd

import (
	"context"
	"fmt"
	"github.com/NikkyAI/discordbot/discordbot"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
)

var (
	cfg        = discordbot.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "discordbot [flags]",
	Short: "Migrates the bot's config.json and imports it into the database",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
		slog.SetDefault(
			slog.New(discordbot.NewLogHandler(os.Stderr, cfg.LogLevel)),
		)
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		// mapstructure hands over the pointee when the target field
		// already holds a *slog.LevelVar, as DefaultConfig's do
		typ := t
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("config_dir", discordbot.DefaultConfigDir)
	viper.SetDefault("database", discordbot.DefaultDatabase)
	viper.SetDefault("database_type", discordbot.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		discordbot.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		discordbot.DefaultDatabaseLogLevel.String(),
	)
	viper.SetDefault(
		"transaction_timeout",
		discordbot.DefaultTransactionTimeout,
	)
	viper.SetDefault("log_level", discordbot.DefaultLogLevel.String())

	envPrefix := os.Getenv(discordbot.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = discordbot.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// CONFIG_DIR is honored without the prefix as well, the prefixed
	// variable taking precedence
	if err := viper.BindEnv(
		"config_dir",
		envPrefix+"_"+discordbot.EnvvarConfigDir,
		discordbot.EnvvarConfigDir,
	); err != nil {
		log.Fatalf("error: %v", err)
	}

	for k, v := range viper.AllSettings() {
		log.Printf("config: %s: %v", k, v)
	}

	// levels stay strings in viper, LevelToStringHookFunc converts them
	// when cfg is unmarshaled
	for _, key := range []string{"log_level", "database_log_level"} {
		if _, err := getLogLevel(viper.GetString(key)); err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
	}
}

//goland:noinspection GoLinter,GoLinter
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
