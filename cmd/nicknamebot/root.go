package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "nicknamebot",
		Short:        "Telegram bot that keeps a nickname per participant in every group",
		Version:      version,
		SilenceUsage: true,
		// Running the binary without a subcommand serves the bot.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newInspectCmd())
	return root
}
