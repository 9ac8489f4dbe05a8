package cmd

import (
	"fmt"
	"log"

	"github.com/NikkyAI/discordbot/discordbot"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal("Environment variable BOT_DATABASE_TYPE not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			log.Fatal(
				"Environment variable BOT_DATABASE not set (must be a valid " +
					"database connection string or sqlite file path)",
			)
		}
		// Run database migrations
		db, err := discordbot.OpenDB(ctx, cfg)
		if err != nil {
			log.Fatalf("Error creating database: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Error getting database handle: %v", err)
		}
		defer func() {
			_ = sqlDB.Close()
		}()

		fmt.Fprintln(
			cmd.OutOrStdout(),
			"Initialization complete. You can now import config.json with the 'convert' subcommand.",
		)
	},
}

//goland:noinspection GoLinter
func init() {
	rootCmd.AddCommand(initCmd)
}
