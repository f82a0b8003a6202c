package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/niktheblak/water-quality-logger/pkg/replication"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy new local readings to the remote database",
	RunE: func(cmd *cobra.Command, args []string) error {
		once, err := cmd.Flags().GetBool("once")
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		local, err := openLocalStore(ctx)
		if err != nil {
			return err
		}
		defer local.Close()
		dest, err := newRemoteStore(ctx, true)
		if err != nil {
			return err
		}
		defer dest.Close()
		engine, err := replication.New(replication.Config{
			Source:      local,
			Destination: dest,
			Interval:    viper.GetDuration("sync.interval"),
			CallTimeout: viper.GetDuration("sync.timeout"),
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		if !once {
			go func() {
				<-ctx.Done()
				// a cycle interrupted while transferring is rolled back
				logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "Stopping sync", slog.String("state", engine.State().String()))
			}()
			return engine.Run(ctx)
		}
		res, err := engine.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "Sync finished", slog.String("cycle_id", res.CycleID))
		fmt.Fprintf(cmd.OutOrStdout(), "%d transferred, %d already present, %d candidates in %v\n", res.Transferred, res.Skipped, res.Candidates, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("once", false, "run a single sync cycle and exit")
	syncCmd.Flags().Duration("sync.interval", replication.DefaultInterval, "delay between sync cycles")
	syncCmd.Flags().Duration("sync.timeout", replication.DefaultCallTimeout, "timeout of a single database call")

	cobra.CheckErr(viper.BindPFlag("sync.interval", syncCmd.Flags().Lookup("sync.interval")))
	cobra.CheckErr(viper.BindPFlag("sync.timeout", syncCmd.Flags().Lookup("sync.timeout")))

	rootCmd.AddCommand(syncCmd)
}
