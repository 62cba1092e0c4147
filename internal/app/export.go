package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"quote-alerts/internal/market"
)

// ExportOptions hold parameters for exporting a symbol's chart data.
type ExportOptions struct {
	Symbol  string
	Range   string
	PNGPath string
	CSVPath string
}

// Export fetches a chart range and renders it as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if _, ok := market.Lookup(opts.Symbol); !ok {
		return fmt.Errorf("unknown symbol %q", opts.Symbol)
	}
	if opts.Range == "" {
		opts.Range = "1D"
	}

	f := a.newFetcher()
	response, ok := f.GetChart(ctx, opts.Symbol, opts.Range)
	if !ok {
		return fmt.Errorf("no chart data for %s", opts.Symbol)
	}
	if len(response.Candles) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("chart range is empty, nothing to export")
		return nil
	}

	a.Logger.Info().Str("symbol", opts.Symbol).Str("range", opts.Range).Int("candles", len(response.Candles)).Msg("exporting chart")

	if opts.CSVPath != "" {
		if err := writeChartCSV(opts.CSVPath, response); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeChartPNG(opts.PNGPath, response); err != nil {
			return err
		}
	}

	return nil
}

func writeChartCSV(path string, response market.ChartResponse) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "open", "high", "low", "close", "volume"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, candle := range response.Candles {
		record := []string{
			candle.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.4f", candle.Open),
			fmt.Sprintf("%.4f", candle.High),
			fmt.Sprintf("%.4f", candle.Low),
			fmt.Sprintf("%.4f", candle.Close),
			fmt.Sprintf("%d", candle.Volume),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeChartPNG(path string, response market.ChartResponse) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(response.Candles))
	closes := make([]float64, len(response.Candles))
	for i, candle := range response.Candles {
		x[i] = candle.Timestamp
		closes[i] = candle.Close
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("Close (%s)", response.Meta.Currency),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    response.Symbol,
				XValues: x,
				YValues: closes,
			},
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
