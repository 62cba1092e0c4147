package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quote-alerts/internal/app"
)

var (
	exportRange string
	exportPNG   string
	exportCSV   string
)

var exportCmd = &cobra.Command{
	Use:   "export <symbol>",
	Short: "Export a symbol's chart range as CSV and/or PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportPNG == "" && exportCSV == "" {
			return fmt.Errorf("at least one of --png or --csv is required")
		}

		opts := app.ExportOptions{
			Symbol:  args[0],
			Range:   exportRange,
			PNGPath: exportPNG,
			CSVPath: exportCSV,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRange, "range", "1D", "Chart range (1D, 1W, 1M, 3M, 6M, 1Y)")
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Write a PNG chart to this path")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Write candle data as CSV to this path")
}
