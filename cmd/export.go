package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/niktheblak/water-quality-logger/pkg/export"
	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export local readings as CSV or Excel",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		sinceFlag, err := cmd.Flags().GetString("since")
		if err != nil {
			return err
		}
		var since *time.Time
		if sinceFlag != "" {
			ts, err := time.Parse(time.RFC3339Nano, sinceFlag)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			since = &ts
		}
		var write func(io.Writer, []reading.Reading) error
		switch format {
		case "csv":
			write = export.WriteCSV
		case "xlsx":
			write = export.WriteXLSX
		default:
			return fmt.Errorf("unsupported format %q", format)
		}
		ctx := cmd.Context()
		local, err := openLocalStore(ctx)
		if err != nil {
			return err
		}
		defer local.Close()
		readings, err := local.Since(ctx, since)
		if err != nil {
			return err
		}
		if output == "" || output == "-" {
			return write(cmd.OutOrStdout(), readings)
		}
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := write(f, readings); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "Exported readings", slog.String("file", output), slog.String("format", format), slog.Int("readings", len(readings)))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format (csv, xlsx)")
	exportCmd.Flags().StringP("output", "o", "", "output file, stdout if empty")
	exportCmd.Flags().String("since", "", "only export readings after this RFC 3339 timestamp")

	rootCmd.AddCommand(exportCmd)
}
