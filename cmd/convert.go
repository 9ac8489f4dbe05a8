package cmd

import (
	"fmt"
	"github.com/NikkyAI/discordbot/discordbot"
	"github.com/spf13/cobra"
	"log"
	"log/slog"
)

var (
	dryRun bool

	convertCmd = &cobra.Command{
		Use:   "convert [flags]",
		Short: "Migrates config.json to the current version and imports it into the database",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := discordbot.WithLogger(cmd.Context(), slog.Default())

			if dryRun {
				configs, err := discordbot.LoadGuildConfigs(ctx, cfg.ConfigFile())
				if err != nil {
					log.Fatalf("error loading guild configs: %s", err.Error())
				}
				out, err := discordbot.EncodeGuildConfigs(configs)
				if err != nil {
					log.Fatalf("error encoding guild configs: %s", err.Error())
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return
			}

			imported, err := discordbot.Convert(ctx, cfg)
			if err != nil {
				log.Fatalf("error converting guild configs: %s", err.Error())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d guild(s)\n", imported)
		},
	}
)

//goland:noinspection GoLinter
func init() {
	convertCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Print the migrated config instead of importing it",
	)
	rootCmd.AddCommand(convertCmd)
}
