package market

import "time"

// Quote is a point-in-time snapshot for one security. Quotes are immutable:
// a refresh replaces the whole value, nothing mutates fields in place.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	Volume        int64     `json:"volume"`
	Week52High    float64   `json:"week52High"`
	Week52Low     float64   `json:"week52Low"`
	MarketCap     string    `json:"marketCap"`
	Currency      string    `json:"currency"`
	Exchange      string    `json:"exchange"`
	Category      string    `json:"category"`
	Sparkline     []float64 `json:"sparkline"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Candle is a single OHLCV bar.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// ChartMeta carries source metadata alongside a candle series.
type ChartMeta struct {
	Currency      string  `json:"currency"`
	Exchange      string  `json:"exchange"`
	PreviousClose float64 `json:"previousClose"`
}

// ChartResponse is an immutable candle series for one (symbol, range) pair.
type ChartResponse struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Range    string    `json:"range"`
	Candles  []Candle  `json:"candles"`
	Meta     ChartMeta `json:"meta"`
}
