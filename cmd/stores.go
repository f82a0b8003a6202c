package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
	"github.com/niktheblak/water-quality-logger/pkg/localstore"
	"github.com/niktheblak/water-quality-logger/pkg/remote"
)

func calibrationStore() *calibration.FileStore {
	return calibration.NewFileStore(viper.GetString("calibration.file"))
}

func openLocalStore(ctx context.Context) (*localstore.Store, error) {
	path := viper.GetString("local.path")
	store, err := localstore.Open(localstore.Config{
		Path:   path,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	n, err := store.Count(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Opened local store", slog.String("path", path), slog.Int64("readings", n))
	return store, nil
}

// newRemoteStore builds the remote store. With createSchema the table is
// created on first use, as the sync loop needs on a fresh database.
func newRemoteStore(ctx context.Context, createSchema bool) (*remote.Store, error) {
	store, err := remote.New(remote.Config{
		URL:          viper.GetString("remote.url"),
		Table:        viper.GetString("remote.table"),
		CreateSchema: createSchema,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	if !store.Configured() {
		logger.LogAttrs(ctx, slog.LevelWarn, "Remote database URL not configured", slog.String("table", viper.GetString("remote.table")))
	}
	return store, nil
}
