package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	Execute()
}

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pocket-consultant",
		Short: "Legal consultant chat-bot for Telegram and WhatsApp",
		// Bare invocation runs the bot.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newQuotaCmd())

	return cmd
}
