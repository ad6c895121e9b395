package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/zjrosen/quickscale/internal/quickscale"
	"github.com/zjrosen/quickscale/internal/scene"
)

var calcFlags struct {
	width, height       float64
	refWidth, refHeight float64
	min, max            float64
	factor              float64
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Print the scale for a measured size",
	Long: `Compute the scale quickscale would apply to an element measured at
--width x --height, without starting the TUI.

Example:
  quickscale calc --width 1920 --height 1080
  quickscale calc --width 640 --height 360 --min 0.75 --factor 1.5`,
	Args: cobra.NoArgs,
	RunE: runCalc,
}

func init() {
	rootCmd.AddCommand(calcCmd)

	f := calcCmd.Flags()
	f.Float64Var(&calcFlags.width, "width", 0, "measured width in pixels")
	f.Float64Var(&calcFlags.height, "height", 0, "measured height in pixels")
	f.Float64Var(&calcFlags.refWidth, "ref-width", quickscale.DefaultReferenceSize.X, "reference width")
	f.Float64Var(&calcFlags.refHeight, "ref-height", quickscale.DefaultReferenceSize.Y, "reference height")
	f.Float64Var(&calcFlags.min, "min", 0, "lower scale bound")
	f.Float64Var(&calcFlags.max, "max", 0, "upper scale bound (0 means unbounded)")
	f.Float64Var(&calcFlags.factor, "factor", quickscale.DefaultFactor, "multiplier applied after clamping")
	_ = calcCmd.MarkFlagRequired("width")
	_ = calcCmd.MarkFlagRequired("height")
}

func runCalc(cmd *cobra.Command, _ []string) error {
	upper := calcFlags.max
	if upper == 0 {
		upper = math.Inf(1)
	}
	if calcFlags.min > upper {
		return fmt.Errorf("--min %v exceeds --max %v", calcFlags.min, calcFlags.max)
	}

	params := quickscale.DefaultParams()
	params.ReferenceSize = scene.NewVector2(calcFlags.refWidth, calcFlags.refHeight)
	params.ScaleBounds = scene.NewNumberRange(calcFlags.min, upper)
	params.Factor = calcFlags.factor

	measured := scene.NewVector2(calcFlags.width, calcFlags.height)
	scale := quickscale.CalculateScale(measured, params)
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s -> %.4f\n", measured, scale)
	return err
}
