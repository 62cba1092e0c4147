package fetcher

import (
	"context"
	"sync"

	"quote-alerts/internal/market"
)

// Result pairs one requested symbol with its outcome. OK is false when the
// symbol yielded no data at all (unknown symbol, or provider down with an
// empty cache).
type Result struct {
	Symbol string
	Quote  market.Quote
	Fresh  bool
	OK     bool
}

// FetchAll fans symbol fetches out across a fixed worker pool. Every input
// symbol yields exactly one Result, in input order; one symbol failing never
// cancels or blocks the rest. An empty symbol list expands to the full
// universe ordered by category priority.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string) []Result {
	if len(symbols) == 0 {
		symbols = market.AllSymbols()
	}

	results := make([]Result, len(symbols))
	jobs := make(chan int)

	workers := f.opts.Concurrency
	if workers > len(symbols) {
		workers = len(symbols)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				symbol := symbols[idx]
				quote, fresh, ok := f.GetQuote(ctx, symbol)
				results[idx] = Result{Symbol: symbol, Quote: quote, Fresh: fresh, OK: ok}
			}
		}()
	}

	for idx := range symbols {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results
}

// RefreshAll busts the quote cache and refetches the whole universe. Used by
// the cache-busting refresh operation; returns how many symbols yielded data.
func (f *Fetcher) RefreshAll(ctx context.Context) int {
	f.store.Invalidate()

	fetched := 0
	for _, res := range f.FetchAll(ctx, nil) {
		if res.OK {
			fetched++
		}
	}
	return fetched
}
