package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"quote-alerts/internal/market"
)

// QuoteOptions configure the one-shot quote command.
type QuoteOptions struct {
	Symbols []string
}

// Quote fetches and prints quotes for the requested symbols (or the whole
// universe when none are given).
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	f := a.newFetcher()

	for _, symbol := range opts.Symbols {
		if _, ok := market.Lookup(symbol); !ok {
			return fmt.Errorf("unknown symbol %q", symbol)
		}
	}

	results := f.FetchAll(ctx, opts.Symbols)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tName\tPrice\tChange%\tVolume\tUpdated (UTC)")

	for _, res := range results {
		if !res.OK {
			fmt.Fprintf(writer, "%s\t-\t-\t-\t-\tno data\n", res.Symbol)
			continue
		}
		q := res.Quote
		fmt.Fprintf(
			writer,
			"%s\t%s\t%.2f\t%+.2f\t%d\t%s\n",
			q.Symbol,
			q.Name,
			q.Price,
			q.ChangePercent,
			q.Volume,
			q.UpdatedAt.Format(time.RFC3339),
		)
	}

	return writer.Flush()
}
