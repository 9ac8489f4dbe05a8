package cmd

import (
	"fmt"
	"github.com/NikkyAI/discordbot/discordbot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build and the config.json version it migrates to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(
			out,
			"discordbot %s (commit %s, built %s)\n",
			discordbot.Version,
			discordbot.CommitSHA,
			discordbot.BuildTime,
		)
		fmt.Fprintf(out, "config.json version: %d\n", discordbot.CurrentGuildConfigVersion)
		for _, step := range discordbot.GuildConfigSteps() {
			fmt.Fprintf(out, "  %d -> %d %s\n", step.From, step.To, step.Name)
		}
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(versionCmd)
}
