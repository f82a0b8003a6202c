package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/niktheblak/water-quality-logger/pkg/remote"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "water-quality-logger",
	Short:        "Calibrated pH, TDS and dissolved oxygen logger with cloud sync",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetString("log.level"), viper.GetString("log.format"))
		if err != nil {
			return err
		}
		logger = l
		if f := viper.ConfigFileUsed(); f != "" {
			logger.LogAttrs(cmd.Context(), slog.LevelInfo, "Using config file", slog.String("config", f))
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	logger = slog.Default()
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.water-quality-logger/config.toml)")
	rootCmd.PersistentFlags().String("log.level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log.format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("calibration.file", "calibration.json", "calibration document path")
	rootCmd.PersistentFlags().String("local.path", "sensor_data.db", "local SQLite database path")
	rootCmd.PersistentFlags().String("remote.url", "", "remote PostgreSQL connection string")
	rootCmd.PersistentFlags().String("remote.table", remote.DefaultTable, "remote table name")

	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
	cobra.CheckErr(viper.BindEnv("remote.url", "REMOTE_URL", "CLOUD_DATABASE_URL"))
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("/etc/water-quality-logger")
		viper.AddConfigPath("$HOME/.water-quality-logger")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		logger.LogAttrs(context.Background(), slog.LevelWarn, "Failed to read config file", slog.String("config", cfgFile), slog.Any("error", err))
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
