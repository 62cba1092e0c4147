package provider

import (
	"context"
	"time"
)

// Point is one bar of the raw provider series.
type Point struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Series is the narrow slice of a provider chart payload the engine consumes.
type Series struct {
	Currency      string
	Exchange      string
	Price         float64
	PreviousClose float64
	DayHigh       float64
	DayLow        float64
	Volume        int64
	Week52High    float64
	Week52Low     float64
	Points        []Point
}

// SeriesSource fetches raw quote/chart data for one provider symbol at a time.
type SeriesSource interface {
	FetchSeries(ctx context.Context, providerSymbol, interval, rng string) (Series, error)
}
