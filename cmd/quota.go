package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/config"
	"github.com/spf13/cobra"
)

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect daily quotas in the configured backend",
	}
	cmd.AddCommand(newQuotaShowCmd())
	cmd.AddCommand(newQuotaListCmd())
	return cmd
}

func newQuotaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user_id>",
		Short: "Print today's usage for one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, closeFn, err := openQuotaStore(cmd.Context(), cfg)
			defer closeFn()
			if err != nil {
				return err
			}
			return printJSON(cmd, store.Status(userID))
		},
	}
}

func newQuotaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print today's usage for every known user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, closeFn, err := openQuotaStore(cmd.Context(), cfg)
			defer closeFn()
			if err != nil {
				return err
			}
			return printJSON(cmd, store.Statuses())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
