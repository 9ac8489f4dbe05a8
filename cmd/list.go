package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"

	"github.com/NikkyAI/discordbot/discordbot"
	"github.com/spf13/cobra"
)

var (
	listChannel string

	listCmd = &cobra.Command{
		Use:   "list [flags]",
		Short: "Print the guild configs stored in the database",
		Long: "Print the guild configs stored in the database as a current-version " +
			"config.json. With --channel, print the role choosers posted in that channel instead.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			db, err := discordbot.OpenDB(ctx, cfg)
			if err != nil {
				log.Fatalf("Error opening database: %v", err)
			}
			sqlDB, err := db.DB()
			if err != nil {
				log.Fatalf("Error getting database handle: %v", err)
			}
			defer func() {
				_ = sqlDB.Close()
			}()

			configs, err := discordbot.NewDatabase(db, slog.Default(), false).GuildConfigs(ctx)
			if err != nil {
				log.Fatalf("Error reading guild configs: %v", err)
			}

			var out []byte
			if listChannel == "" {
				out, err = discordbot.EncodeGuildConfigs(configs)
			} else {
				sections := map[string][]discordbot.RoleChooserSection{}
				for guildID, guildConfig := range configs {
					found := discordbot.RoleManagementFromGuildConfig(guildConfig).List(listChannel)
					if len(found) > 0 {
						sections[guildID] = found
					}
				}
				out, err = json.MarshalIndent(sections, "", "  ")
			}
			if err != nil {
				log.Fatalf("Error encoding output: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		},
	}
)

//goland:noinspection GoLinter
func init() {
	listCmd.Flags().StringVar(
		&listChannel,
		"channel",
		"",
		"Only list role choosers in this channel ID",
	)
	rootCmd.AddCommand(listCmd)
}
