package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the local and remote readings tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		local, err := openLocalStore(ctx)
		if err != nil {
			return err
		}
		if err := local.Close(); err != nil {
			return err
		}
		dest, err := newRemoteStore(ctx, false)
		if err != nil {
			return err
		}
		defer dest.Close()
		if !dest.Configured() {
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := dest.Ping(ctx); err != nil {
			return err
		}
		if err := dest.CreateSchema(ctx); err != nil {
			return err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "Remote schema ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
