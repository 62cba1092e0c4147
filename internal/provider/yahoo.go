package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options parameterise the Yahoo chart fetcher.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Yahoo fetches chart payloads from the Yahoo Finance v8 chart API.
type Yahoo struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewYahoo constructs a Yahoo series source.
func NewYahoo(opts Options, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// chartResponse covers exactly the fields the engine consumes. Anything else
// in the payload is ignored; a missing result is a decode error, not a zero.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency             string  `json:"currency"`
				ExchangeName         string  `json:"exchangeName"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				PreviousClose        float64 `json:"previousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  int64   `json:"regularMarketVolume"`
				FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries retrieves one symbol's chart payload and maps it to a Series.
func (y *Yahoo) FetchSeries(ctx context.Context, providerSymbol, interval, rng string) (Series, error) {
	if providerSymbol == "" {
		return Series{}, errors.New("provider symbol required")
	}
	if interval == "" {
		interval = "5m"
	}
	if rng == "" {
		rng = "1d"
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", y.baseURL, url.PathEscape(providerSymbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Series{}, err
	}

	query := req.URL.Query()
	query.Set("interval", interval)
	query.Set("range", rng)
	query.Set("includePrePost", "false")
	req.URL.RawQuery = query.Encode()

	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "quotewatcher/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return Series{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Series{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Series{}, fmt.Errorf("yahoo chart api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded chartResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Series{}, fmt.Errorf("decode chart payload: %w", err)
	}

	if decoded.Chart.Error != nil {
		return Series{}, fmt.Errorf("yahoo chart api error: %s (%s)", decoded.Chart.Error.Description, decoded.Chart.Error.Code)
	}
	if len(decoded.Chart.Result) == 0 {
		return Series{}, errors.New("chart payload contained no result")
	}

	result := decoded.Chart.Result[0]
	if result.Meta.RegularMarketPrice <= 0 {
		return Series{}, errors.New("chart payload missing market price")
	}

	previousClose := result.Meta.PreviousClose
	if previousClose <= 0 {
		previousClose = result.Meta.ChartPreviousClose
	}

	series := Series{
		Currency:      result.Meta.Currency,
		Exchange:      result.Meta.ExchangeName,
		Price:         result.Meta.RegularMarketPrice,
		PreviousClose: previousClose,
		DayHigh:       result.Meta.RegularMarketDayHigh,
		DayLow:        result.Meta.RegularMarketDayLow,
		Volume:        result.Meta.RegularMarketVolume,
		Week52High:    result.Meta.FiftyTwoWeekHigh,
		Week52Low:     result.Meta.FiftyTwoWeekLow,
	}

	if len(result.Indicators.Quote) > 0 {
		bars := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			closePrice := deref(bars.Close, i)
			if closePrice == 0 {
				// provider emits null bars for halted intervals
				continue
			}
			series.Points = append(series.Points, Point{
				Timestamp: time.Unix(ts, 0).UTC(),
				Open:      deref(bars.Open, i),
				High:      deref(bars.High, i),
				Low:       deref(bars.Low, i),
				Close:     closePrice,
				Volume:    derefInt(bars.Volume, i),
			})
		}
	}

	return series, nil
}

func deref(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func derefInt(values []*int64, i int) int64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

var _ SeriesSource = (*Yahoo)(nil)
