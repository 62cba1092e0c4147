package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"quote-alerts/internal/cache"
	"quote-alerts/internal/market"
	"quote-alerts/internal/provider"
)

// Options tune the fetch layer.
type Options struct {
	Concurrency   int
	QuoteInterval string
	QuoteRange    string
}

// Fetcher orchestrates cache reads, provider calls, and stale fallback.
// Fetch-layer failures never escape: a symbol either yields a quote (fresh or
// knowingly stale) or no data at all.
type Fetcher struct {
	source provider.SeriesSource
	store  *cache.Store
	opts   Options
	logger zerolog.Logger
}

// New constructs a Fetcher.
func New(source provider.SeriesSource, store *cache.Store, opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.QuoteInterval == "" {
		opts.QuoteInterval = "5m"
	}
	if opts.QuoteRange == "" {
		opts.QuoteRange = "1d"
	}
	return &Fetcher{
		source: source,
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "fetcher").Logger(),
	}
}

// GetQuote returns a quote for symbol, serving the cache when fresh and
// falling back to a stale entry when the provider fails. fresh reports whether
// the returned value is within its TTL.
func (f *Fetcher) GetQuote(ctx context.Context, symbol string) (quote market.Quote, fresh bool, ok bool) {
	info, found := market.Lookup(symbol)
	if !found {
		return market.Quote{}, false, false
	}

	if cached, cachedFresh, hit := f.store.Get(symbol); hit && cachedFresh {
		return cached, true, true
	}

	series, err := f.source.FetchSeries(ctx, info.ProviderSymbol, f.opts.QuoteInterval, f.opts.QuoteRange)
	if err != nil {
		f.logger.Warn().Err(err).Str("symbol", symbol).Msg("provider fetch failed, falling back to cache")
		if cached, _, hit := f.store.Get(symbol); hit {
			return cached, false, true
		}
		return market.Quote{}, false, false
	}

	built := buildQuote(info, series)
	f.store.Put(symbol, built)
	return built, true, true
}

// GetChart returns the candle series for (symbol, rng) with the same cache and
// stale-fallback semantics as GetQuote.
func (f *Fetcher) GetChart(ctx context.Context, symbol, rng string) (market.ChartResponse, bool) {
	info, found := market.Lookup(symbol)
	if !found {
		return market.ChartResponse{}, false
	}

	if cached, fresh, hit := f.store.GetChart(symbol, rng); hit && fresh {
		return cached, true
	}

	interval := intervalFor(rng)
	series, err := f.source.FetchSeries(ctx, info.ProviderSymbol, interval, providerRange(rng))
	if err != nil {
		f.logger.Warn().Err(err).Str("symbol", symbol).Str("range", rng).Msg("chart fetch failed, falling back to cache")
		if cached, _, hit := f.store.GetChart(symbol, rng); hit {
			return cached, true
		}
		return market.ChartResponse{}, false
	}

	chart := buildChart(info, rng, interval, series)
	f.store.PutChart(symbol, rng, chart)
	return chart, true
}

func buildQuote(info market.SymbolInfo, series provider.Series) market.Quote {
	change := 0.0
	changePercent := 0.0
	if series.PreviousClose > 0 {
		change = series.Price - series.PreviousClose
		changePercent = change / series.PreviousClose * 100
	}

	currency := series.Currency
	if currency == "" {
		currency = info.Currency
	}
	exchange := series.Exchange
	if exchange == "" {
		exchange = info.Exchange
	}

	return market.Quote{
		Symbol:        info.Symbol,
		Name:          info.Name,
		Price:         series.Price,
		PreviousClose: series.PreviousClose,
		Change:        change,
		ChangePercent: changePercent,
		DayHigh:       series.DayHigh,
		DayLow:        series.DayLow,
		Volume:        series.Volume,
		Week52High:    series.Week52High,
		Week52Low:     series.Week52Low,
		Currency:      currency,
		Exchange:      exchange,
		Category:      info.Category,
		Sparkline:     downsampleCloses(series.Points, 14),
		UpdatedAt:     time.Now().UTC(),
	}
}

func buildChart(info market.SymbolInfo, rng, interval string, series provider.Series) market.ChartResponse {
	candles := make([]market.Candle, 0, len(series.Points))
	for _, pt := range series.Points {
		candles = append(candles, market.Candle{
			Timestamp: pt.Timestamp,
			Open:      pt.Open,
			High:      pt.High,
			Low:       pt.Low,
			Close:     pt.Close,
			Volume:    pt.Volume,
		})
	}

	return market.ChartResponse{
		Symbol:   info.Symbol,
		Interval: interval,
		Range:    rng,
		Candles:  candles,
		Meta: market.ChartMeta{
			Currency:      series.Currency,
			Exchange:      series.Exchange,
			PreviousClose: series.PreviousClose,
		},
	}
}

// downsampleCloses keeps every ceil(N/max)-th close plus the final point so a
// long intraday series collapses into a bounded sparkline.
func downsampleCloses(points []provider.Point, max int) []float64 {
	if len(points) == 0 {
		return nil
	}

	step := (len(points) + max - 1) / max
	if step < 1 {
		step = 1
	}

	closes := make([]float64, 0, max+1)
	for i := 0; i < len(points); i += step {
		closes = append(closes, points[i].Close)
	}
	last := points[len(points)-1].Close
	if closes[len(closes)-1] != last {
		closes = append(closes, last)
	}
	return closes
}

func intervalFor(rng string) string {
	switch rng {
	case "1D":
		return "5m"
	case "1W":
		return "30m"
	case "1Y":
		return "1wk"
	default:
		return "1d"
	}
}

func providerRange(rng string) string {
	switch rng {
	case "1D":
		return "1d"
	case "1W":
		return "5d"
	case "1M":
		return "1mo"
	case "3M":
		return "3mo"
	case "6M":
		return "6mo"
	case "1Y":
		return "1y"
	default:
		return "1d"
	}
}
