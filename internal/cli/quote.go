package cli

import (
	"github.com/spf13/cobra"

	"quote-alerts/internal/app"
)

var quoteCmd = &cobra.Command{
	Use:   "quote [symbol...]",
	Short: "Fetch and print quotes for the given symbols (default: all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.QuoteOptions{
			Symbols: args,
		}
		return getApp().Quote(cmd.Context(), opts)
	},
}
