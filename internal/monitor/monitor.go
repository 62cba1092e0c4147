package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/push"
	"quote-alerts/internal/registry"
	"quote-alerts/internal/storage"
)

// Options tune the check loop.
type Options struct {
	Cooldown            time.Duration
	SkipStaleQuotes     bool
	DeliveryConcurrency int
}

// CheckStats summarises one monitor run.
type CheckStats struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
	Sent      int `json:"sent"`
}

type fetchedPrice struct {
	price float64
	fresh bool
}

// Monitor periodically evaluates every enabled alert against live prices and
// hands triggered ones to the notifier. It owns the last-known-price baseline
// used for percent-change alerts.
type Monitor struct {
	registry *registry.Registry
	fetcher  *fetcher.Fetcher
	notifier push.Notifier
	audit    storage.NotificationStore
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time

	// mu guards running and lastPrices. Overlapping runs would race on the
	// baseline, so a tick that lands mid-run is skipped outright.
	mu         sync.Mutex
	running    bool
	lastPrices map[string]float64
}

// New constructs a Monitor.
func New(reg *registry.Registry, f *fetcher.Fetcher, notifier push.Notifier, audit storage.NotificationStore, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Minute
	}
	if opts.DeliveryConcurrency <= 0 {
		opts.DeliveryConcurrency = 4
	}
	return &Monitor{
		registry:   reg,
		fetcher:    f,
		notifier:   notifier,
		audit:      audit,
		opts:       opts,
		logger:     logger.With().Str("component", "monitor").Logger(),
		now:        time.Now,
		lastPrices: make(map[string]float64),
	}
}

// Running reports whether a check is currently in progress.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

type pendingNotification struct {
	deviceID string
	alertID  string
	symbol   string
	message  push.Message
}

// RunCheck performs one evaluation cycle. A cycle that lands while another is
// still in progress is skipped. Never returns a non-nil error for contained
// failures; those are logged and reflected in the counts.
func (m *Monitor) RunCheck(ctx context.Context) (CheckStats, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Warn().Msg("previous check still running, skipping this cycle")
		return CheckStats{}, nil
	}
	m.running = true
	baseline := make(map[string]float64, len(m.lastPrices))
	for symbol, price := range m.lastPrices {
		baseline[symbol] = price
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	devices := m.registry.Snapshot()
	symbols := monitoredSymbols(devices)
	if len(symbols) == 0 {
		return CheckStats{}, nil
	}

	prices := make(map[string]fetchedPrice, len(symbols))
	for _, res := range m.fetcher.FetchAll(ctx, symbols) {
		if res.OK {
			prices[res.Symbol] = fetchedPrice{price: res.Quote.Price, fresh: res.Fresh}
		}
	}

	now := m.now().UTC()
	stats := CheckStats{}
	var pending []pendingNotification

	for _, device := range devices {
		if !device.Preferences.PriceAlerts {
			continue
		}
		if inQuietHours(device.Preferences, now.Hour()) {
			continue
		}

		for _, alert := range device.Alerts {
			if !alert.Enabled {
				continue
			}
			if alert.LastTriggered != nil && now.Sub(*alert.LastTriggered) < m.opts.Cooldown {
				continue
			}

			fetched, ok := prices[alert.Symbol]
			if !ok {
				continue
			}
			if m.opts.SkipStaleQuotes && !fetched.fresh {
				continue
			}

			stats.Checked++
			if !evaluate(alert, fetched.price, baseline) {
				continue
			}

			stats.Triggered++
			title, body := formatNotification(alert, fetched.price)
			pending = append(pending, pendingNotification{
				deviceID: device.ID,
				alertID:  alert.ID,
				symbol:   alert.Symbol,
				message: push.Message{
					Token: device.PushToken,
					Title: title,
					Body:  body,
					Data: map[string]string{
						"type":    "price-alert",
						"symbol":  alert.Symbol,
						"alertId": alert.ID,
					},
				},
			})
		}
	}

	stats.Sent = m.dispatch(ctx, pending, now)

	// Commit the fetched prices as the next cycle's percent-change baseline.
	// This happens once, after all devices are evaluated, so every alert in a
	// cycle compared against the same previous prices.
	m.mu.Lock()
	for symbol, fetched := range prices {
		m.lastPrices[symbol] = fetched.price
	}
	m.mu.Unlock()

	m.logger.Info().
		Int("symbols", len(symbols)).
		Int("checked", stats.Checked).
		Int("triggered", stats.Triggered).
		Int("sent", stats.Sent).
		Msg("check completed")

	return stats, nil
}

// dispatch fans deliveries out across a small worker pool so one slow device
// does not serialise the rest. lastTriggered is stamped only on delivered
// sends; a failed send retries naturally next cycle.
func (m *Monitor) dispatch(ctx context.Context, pending []pendingNotification, now time.Time) int {
	if len(pending) == 0 {
		return 0
	}

	workers := m.opts.DeliveryConcurrency
	if workers > len(pending) {
		workers = len(pending)
	}

	jobs := make(chan pendingNotification)
	var wg sync.WaitGroup
	var sentMu sync.Mutex
	sent := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := m.notifier.Send(ctx, job.message)
				if !result.Delivered {
					m.logger.Warn().
						Str("device", job.deviceID).
						Str("alert", job.alertID).
						Str("reason", result.Reason).
						Msg("push delivery failed, will retry next cycle")
					continue
				}

				m.registry.MarkTriggered(job.deviceID, job.alertID, now)
				m.recordAudit(ctx, job, now)
				sentMu.Lock()
				sent++
				sentMu.Unlock()
			}
		}()
	}

	for _, job := range pending {
		jobs <- job
	}
	close(jobs)
	wg.Wait()

	return sent
}

func (m *Monitor) recordAudit(ctx context.Context, job pendingNotification, now time.Time) {
	if m.audit == nil {
		return
	}
	rec := storage.NotificationRecord{
		DeviceID: job.deviceID,
		AlertID:  job.alertID,
		Symbol:   job.symbol,
		Title:    job.message.Title,
		Body:     job.message.Body,
		SentAt:   now,
	}
	if _, err := m.audit.InsertNotification(ctx, rec); err != nil {
		m.logger.Error().Err(err).Str("alert", job.alertID).Msg("failed to record notification")
	}
}

// monitoredSymbols unions the symbols of enabled alerts across devices that
// have price alerts switched on, bounding fetch load to names someone watches.
func monitoredSymbols(devices []registry.Device) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, device := range devices {
		if !device.Preferences.PriceAlerts {
			continue
		}
		for _, alert := range device.Alerts {
			if !alert.Enabled {
				continue
			}
			if _, ok := seen[alert.Symbol]; ok {
				continue
			}
			seen[alert.Symbol] = struct{}{}
			symbols = append(symbols, alert.Symbol)
		}
	}
	return symbols
}

// evaluate applies the alert's trigger condition. Threshold comparison goes
// through decimal so a price sitting exactly on the threshold triggers.
func evaluate(alert registry.Alert, price float64, baseline map[string]float64) bool {
	current := decimal.NewFromFloat(price)
	threshold := decimal.NewFromFloat(alert.Threshold)

	switch alert.Kind {
	case registry.KindPriceAbove:
		return current.GreaterThanOrEqual(threshold)
	case registry.KindPriceBelow:
		return current.LessThanOrEqual(threshold)
	case registry.KindPercentChange:
		previous, ok := baseline[alert.Symbol]
		if !ok || previous == 0 {
			return false
		}
		prev := decimal.NewFromFloat(previous)
		movePct := current.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Abs()
		return movePct.GreaterThanOrEqual(threshold)
	default:
		return false
	}
}

// inQuietHours applies the half-open [start, end) window, wrapping past
// midnight when start > end. Quiet hours are off unless both bounds are set.
func inQuietHours(prefs registry.Preferences, hour int) bool {
	if prefs.QuietStart == nil || prefs.QuietEnd == nil {
		return false
	}
	start, end := *prefs.QuietStart, *prefs.QuietEnd
	if start == end {
		return false
	}
	if start > end {
		return hour >= start || hour < end
	}
	return hour >= start && hour < end
}
