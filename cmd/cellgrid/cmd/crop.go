package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cellgrid/internal/geometry"
	"github.com/MeKo-Tech/cellgrid/internal/utils"
)

// cropCmd represents the crop command.
var cropCmd = &cobra.Command{
	Use:   "crop [image]",
	Short: "Crop a region drawn over a scaled image display",
	Long: `Translate a rectangle drawn over a scale-to-fit display of an image into
source image pixels and write that region as a JPEG.

The display box defaults to the natural image size, in which case the
rectangle is taken as source pixels.

Examples:
  cellgrid crop scan.png --rect 40,30,200,120 --display 800,600 --out crop.jpg
  cellgrid crop scan.png --rect 0,0,300,80`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		rectFlag, _ := cmd.Flags().GetString("rect")
		displayFlag, _ := cmd.Flags().GetString("display")
		outFile, _ := cmd.Flags().GetString("out")

		minPx := cfg.Session.MinSelectionPx
		if cmd.Flags().Changed("min-px") {
			minPx, _ = cmd.Flags().GetInt("min-px")
		}

		rect, err := parseFloats(rectFlag, 4)
		if err != nil {
			return fmt.Errorf("invalid --rect: %w", err)
		}
		drawn := geometry.Rect{X: rect[0], Y: rect[1], Width: rect[2], Height: rect[3]}

		img, meta, err := utils.LoadImage(args[0])
		if err != nil {
			return err
		}
		natural := geometry.Size{Width: float64(meta.Width), Height: float64(meta.Height)}

		display := natural
		if displayFlag != "" {
			d, err := parseFloats(displayFlag, 2)
			if err != nil {
				return fmt.Errorf("invalid --display: %w", err)
			}
			display = geometry.Size{Width: d[0], Height: d[1]}
		}

		translator := geometry.Translator{MinPx: minPx}
		source, err := translator.Translate(drawn, display, natural)
		if err != nil {
			return err
		}
		source, err = translator.Clamp(source, meta.Width, meta.Height)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "source rect: %s\n", source)

		if outFile == "" {
			return nil
		}
		data, err := geometry.CropJPEG(img, source)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outFile, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", outFile, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outFile, len(data))
		return nil
	},
}

// parseFloats parses exactly n comma-separated numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		out[i] = v
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(cropCmd)
	cropCmd.Flags().String("rect", "", "drawn rectangle as x,y,width,height in display coordinates")
	cropCmd.Flags().String("display", "", "display box as width,height (default: natural image size)")
	cropCmd.Flags().String("out", "", "write the cropped region as JPEG")
	cropCmd.Flags().Int("min-px", geometry.MinSelectionPx, "noise threshold in source pixels")
	_ = cropCmd.MarkFlagRequired("rect")
}
