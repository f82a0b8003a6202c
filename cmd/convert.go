package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/niktheblak/water-quality-logger/pkg/calibration"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a raw sensor voltage using the current calibration",
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, err := cmd.Flags().GetString("sensor")
		if err != nil {
			return err
		}
		voltage, err := cmd.Flags().GetFloat64("voltage")
		if err != nil {
			return err
		}
		value, err := calibration.NewConverter(calibrationStore()).Convert(sensor, voltage)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%g %s\n", value, calibration.Unit(sensor))
		return nil
	},
}

func init() {
	convertCmd.Flags().String("sensor", "", "sensor the voltage was read from (ph, tds, do)")
	convertCmd.Flags().Float64("voltage", 0, "raw sensor voltage")
	cobra.CheckErr(convertCmd.MarkFlagRequired("sensor"))
	cobra.CheckErr(convertCmd.MarkFlagRequired("voltage"))

	rootCmd.AddCommand(convertCmd)
}
