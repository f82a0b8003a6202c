package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
)

var calibrateCmd = &cobra.Command{
	Use:     "calibrate",
	Short:   "Fit a sensor calibration from reference measurements",
	Example: `  water-quality-logger calibrate --sensor ph --point 1.0:4.0 --point 2.0:10.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, err := cmd.Flags().GetString("sensor")
		if err != nil {
			return err
		}
		rawPoints, err := cmd.Flags().GetStringArray("point")
		if err != nil {
			return err
		}
		points := make([]calibration.Point, 0, len(rawPoints))
		for _, s := range rawPoints {
			p, err := calibration.ParsePoint(s)
			if err != nil {
				return err
			}
			points = append(points, p)
		}
		store := calibrationStore()
		m, err := calibration.Recalibrate(store, sensor, points)
		if err != nil {
			return err
		}
		logger.LogAttrs(cmd.Context(), slog.LevelInfo, "Saved calibration", slog.String("sensor", sensor), slog.String("file", store.Path), slog.Int("points", len(points)))
		fmt.Fprintf(cmd.OutOrStdout(), "%s: value = %g * voltage + %g\n", sensor, m.Slope, m.Offset)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().String("sensor", "", "sensor to calibrate (ph, tds, do)")
	calibrateCmd.Flags().StringArray("point", nil, "calibration point as voltage:reference, repeatable")
	cobra.CheckErr(calibrateCmd.MarkFlagRequired("sensor"))

	rootCmd.AddCommand(calibrateCmd)
}
