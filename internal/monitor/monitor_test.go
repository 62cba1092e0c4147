package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quote-alerts/internal/cache"
	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/provider"
	"quote-alerts/internal/push"
	"quote-alerts/internal/registry"
)

type priceSource struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (s *priceSource) FetchSeries(ctx context.Context, providerSymbol, interval, rng string) (provider.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return provider.Series{}, s.err
	}
	price, ok := s.prices[providerSymbol]
	if !ok {
		return provider.Series{}, errors.New("symbol unavailable")
	}
	return provider.Series{Price: price, PreviousClose: price}, nil
}

func (s *priceSource) setPrice(providerSymbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[providerSymbol] = price
}

func (s *priceSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []push.Message
	fail bool
}

func (n *fakeNotifier) Send(ctx context.Context, msg push.Message) push.SendResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return push.SendResult{Reason: "gateway down"}
	}
	n.sent = append(n.sent, msg)
	return push.SendResult{Delivered: true}
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// newTestMonitor wires a monitor over a 1ns-TTL cache so every check cycle
// refetches from the fake source.
func newTestMonitor(source provider.SeriesSource, notifier push.Notifier, opts Options) (*Monitor, *registry.Registry) {
	store := cache.New(cache.TTLs{Quote: time.Nanosecond, IntradayChart: time.Nanosecond, HistoryChart: time.Nanosecond})
	f := fetcher.New(source, store, fetcher.Options{Concurrency: 4}, zerolog.Nop())
	reg := registry.New(50, zerolog.Nop())
	return New(reg, f, notifier, nil, opts, zerolog.Nop()), reg
}

func TestEvaluatePriceAboveBoundary(t *testing.T) {
	alert := registry.Alert{Symbol: "opap", Kind: registry.KindPriceAbove, Threshold: 10}

	if !evaluate(alert, 10, nil) {
		t.Fatal("price exactly on the threshold must trigger")
	}
	if evaluate(alert, 9.99, nil) {
		t.Fatal("price below the threshold must not trigger")
	}
}

func TestEvaluatePriceBelow(t *testing.T) {
	alert := registry.Alert{Symbol: "opap", Kind: registry.KindPriceBelow, Threshold: 10}

	if !evaluate(alert, 10, nil) {
		t.Fatal("price exactly on the threshold must trigger")
	}
	if !evaluate(alert, 9.5, nil) {
		t.Fatal("price under the threshold must trigger")
	}
	if evaluate(alert, 10.01, nil) {
		t.Fatal("price above the threshold must not trigger")
	}
}

func TestEvaluatePercentChange(t *testing.T) {
	alert := registry.Alert{Symbol: "opap", Kind: registry.KindPercentChange, Threshold: 5}

	if !evaluate(alert, 106, map[string]float64{"opap": 100}) {
		t.Fatal("6% move against a 5% threshold must trigger")
	}
	if evaluate(alert, 104, map[string]float64{"opap": 100}) {
		t.Fatal("4% move against a 5% threshold must not trigger")
	}
	if !evaluate(alert, 94, map[string]float64{"opap": 100}) {
		t.Fatal("downward moves count too")
	}
	if evaluate(alert, 106, nil) {
		t.Fatal("no baseline means no trigger")
	}
	if evaluate(alert, 106, map[string]float64{"opap": 0}) {
		t.Fatal("zero baseline means no trigger")
	}
}

func TestInQuietHours(t *testing.T) {
	start, end := 22, 7
	prefs := registry.Preferences{QuietStart: &start, QuietEnd: &end}

	cases := []struct {
		hour int
		want bool
	}{
		{23, true},
		{2, true},
		{6, true},
		{7, false},
		{12, false},
		{22, true},
	}
	for _, tc := range cases {
		if got := inQuietHours(prefs, tc.hour); got != tc.want {
			t.Fatalf("hour %d: want %v got %v", tc.hour, tc.want, got)
		}
	}

	if inQuietHours(registry.Preferences{}, 23) {
		t.Fatal("absent bounds must disable quiet hours")
	}
	same := 9
	if inQuietHours(registry.Preferences{QuietStart: &same, QuietEnd: &same}, 9) {
		t.Fatal("equal bounds are an empty window")
	}

	day := registry.Preferences{QuietStart: &end, QuietEnd: &start} // 7 -> 22
	if !inQuietHours(day, 12) {
		t.Fatal("non-wrapping window should suppress inside [start, end)")
	}
	if inQuietHours(day, 23) {
		t.Fatal("non-wrapping window should not suppress outside")
	}
}

func TestRunCheckEndToEnd(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5}}
	notifier := &fakeNotifier{}
	mon, reg := newTestMonitor(source, notifier, Options{})

	reg.Register("device-1", "ExponentPushToken[abc]", "ios")
	if _, err := reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Name: "OPAP S.A.", Kind: registry.KindPriceAbove, Threshold: 18.00}); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	stats, err := mon.RunCheck(context.Background())
	if err != nil {
		t.Fatalf("run check: %v", err)
	}
	if stats.Checked != 1 || stats.Triggered != 1 || stats.Sent != 1 {
		t.Fatalf("want 1/1/1, got %+v", stats)
	}
	if notifier.count() != 1 {
		t.Fatalf("exactly one notification expected, got %d", notifier.count())
	}

	alerts, _ := reg.AlertsFor("device-1")
	if alerts[0].LastTriggered == nil {
		t.Fatal("delivered send must stamp lastTriggered")
	}

	// Second run inside the cooldown: condition still holds, nothing fires.
	source.setPrice("OPAP.AT", 18.6)
	stats, _ = mon.RunCheck(context.Background())
	if stats.Sent != 0 {
		t.Fatalf("cooldown must suppress re-trigger, got %+v", stats)
	}
	if notifier.count() != 1 {
		t.Fatalf("no additional notification expected, got %d", notifier.count())
	}
}

func TestRunCheckCooldownWindow(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5}}
	notifier := &fakeNotifier{}
	mon, reg := newTestMonitor(source, notifier, Options{Cooldown: 30 * time.Minute})

	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	current := base
	mon.now = func() time.Time { return current }

	reg.Register("device-1", "token", "ios")
	reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPriceAbove, Threshold: 18})

	if stats, _ := mon.RunCheck(context.Background()); stats.Sent != 1 {
		t.Fatalf("first run should deliver, got %+v", stats)
	}

	current = base.Add(29 * time.Minute)
	if stats, _ := mon.RunCheck(context.Background()); stats.Sent != 0 {
		t.Fatalf("run at T+29m must stay quiet, got %+v", stats)
	}

	current = base.Add(31 * time.Minute)
	if stats, _ := mon.RunCheck(context.Background()); stats.Sent != 1 {
		t.Fatalf("run at T+31m should deliver again, got %+v", stats)
	}
}

func TestRunCheckFailedDeliveryRetriesNextCycle(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5}}
	notifier := &fakeNotifier{fail: true}
	mon, reg := newTestMonitor(source, notifier, Options{})

	reg.Register("device-1", "token", "ios")
	reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPriceAbove, Threshold: 18})

	stats, _ := mon.RunCheck(context.Background())
	if stats.Triggered != 1 || stats.Sent != 0 {
		t.Fatalf("failed delivery: want triggered=1 sent=0, got %+v", stats)
	}

	alerts, _ := reg.AlertsFor("device-1")
	if alerts[0].LastTriggered != nil {
		t.Fatal("failed delivery must leave lastTriggered unset")
	}

	notifier.mu.Lock()
	notifier.fail = false
	notifier.mu.Unlock()

	stats, _ = mon.RunCheck(context.Background())
	if stats.Sent != 1 {
		t.Fatalf("recovered gateway should deliver on the next cycle, got %+v", stats)
	}
}

func TestRunCheckQuietHoursSuppression(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5}}
	notifier := &fakeNotifier{}
	mon, reg := newTestMonitor(source, notifier, Options{})

	mon.now = func() time.Time { return time.Date(2026, 3, 2, 23, 15, 0, 0, time.UTC) }

	reg.Register("device-1", "token", "ios")
	reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPriceAbove, Threshold: 18})
	start, end := 22, 7
	reg.UpdatePreferences("device-1", registry.PreferencesPatch{QuietStart: &start, QuietEnd: &end})

	stats, _ := mon.RunCheck(context.Background())
	if stats.Checked != 0 || stats.Sent != 0 {
		t.Fatalf("quiet hours should skip the device entirely, got %+v", stats)
	}
}

func TestRunCheckPercentChangeUsesPreviousCycleBaseline(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 100}}
	notifier := &fakeNotifier{}
	mon, reg := newTestMonitor(source, notifier, Options{})

	reg.Register("device-1", "token", "ios")
	reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPercentChange, Threshold: 5})

	// First cycle only establishes the baseline.
	stats, _ := mon.RunCheck(context.Background())
	if stats.Triggered != 0 {
		t.Fatalf("no baseline yet, nothing should trigger: %+v", stats)
	}

	source.setPrice("OPAP.AT", 106)
	stats, _ = mon.RunCheck(context.Background())
	if stats.Triggered != 1 || stats.Sent != 1 {
		t.Fatalf("6%% move against the previous cycle should trigger, got %+v", stats)
	}
}

func TestRunCheckSkipsDisabledAlertsAndDevices(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5, "ETE.AT": 7}}
	notifier := &fakeNotifier{}
	mon, reg := newTestMonitor(source, notifier, Options{})

	reg.Register("device-1", "token", "ios")
	disabled, _ := reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPriceAbove, Threshold: 18})
	reg.ToggleAlert("device-1", disabled.ID)

	reg.Register("device-2", "token", "android")
	reg.AddAlert("device-2", registry.AlertSpec{Symbol: "ete", Kind: registry.KindPriceBelow, Threshold: 8})
	off := false
	reg.UpdatePreferences("device-2", registry.PreferencesPatch{PriceAlerts: &off})

	stats, _ := mon.RunCheck(context.Background())
	if stats.Checked != 0 || stats.Sent != 0 {
		t.Fatalf("disabled alert and muted device should be skipped, got %+v", stats)
	}
}

func TestRunCheckNoSymbolsIsNoop(t *testing.T) {
	source := &priceSource{prices: map[string]float64{}}
	notifier := &fakeNotifier{}
	mon, _ := newTestMonitor(source, notifier, Options{})

	stats, err := mon.RunCheck(context.Background())
	if err != nil {
		t.Fatalf("empty registry should be a clean no-op: %v", err)
	}
	if stats != (CheckStats{}) {
		t.Fatalf("no-op should report zero counts, got %+v", stats)
	}
}

func TestRunCheckStalePolicy(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5}}

	for _, skipStale := range []bool{false, true} {
		notifier := &fakeNotifier{}
		mon, reg := newTestMonitor(source, notifier, Options{SkipStaleQuotes: skipStale})

		reg.Register("device-1", "token", "ios")
		reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPriceBelow, Threshold: 20})

		// Warm the cache, then take the provider down so the next cycle can
		// only serve stale data.
		mon.fetcher.GetQuote(context.Background(), "opap")
		source.setErr(errors.New("upstream down"))

		stats, _ := mon.RunCheck(context.Background())
		if skipStale && stats.Sent != 0 {
			t.Fatalf("skip_stale_quotes=true must suppress triggers on stale data, got %+v", stats)
		}
		if !skipStale && stats.Sent != 1 {
			t.Fatalf("skip_stale_quotes=false keeps the original behaviour, got %+v", stats)
		}

		source.setErr(nil)
	}
}

func TestRunCheckSkipsOverlappingRun(t *testing.T) {
	source := &priceSource{prices: map[string]float64{"OPAP.AT": 18.5}}
	notifier := &fakeNotifier{}
	mon, reg := newTestMonitor(source, notifier, Options{})

	reg.Register("device-1", "token", "ios")
	reg.AddAlert("device-1", registry.AlertSpec{Symbol: "opap", Kind: registry.KindPriceAbove, Threshold: 18})

	mon.mu.Lock()
	mon.running = true
	mon.mu.Unlock()

	stats, err := mon.RunCheck(context.Background())
	if err != nil {
		t.Fatalf("overlapping run should be skipped cleanly: %v", err)
	}
	if stats != (CheckStats{}) || notifier.count() != 0 {
		t.Fatalf("overlapping run must do nothing, got %+v", stats)
	}

	mon.mu.Lock()
	mon.running = false
	mon.mu.Unlock()
}

func TestFormatNotificationPerKind(t *testing.T) {
	above := registry.Alert{Symbol: "opap", Name: "OPAP S.A.", Kind: registry.KindPriceAbove, Threshold: 18}
	title, body := formatNotification(above, 18.5)
	if title == "" || body == "" {
		t.Fatal("price-above should produce title and body")
	}

	below := registry.Alert{Symbol: "opap", Kind: registry.KindPriceBelow, Threshold: 18}
	belowTitle, _ := formatNotification(below, 17.5)
	if belowTitle == title {
		t.Fatal("templates must differ per kind")
	}

	pct := registry.Alert{Symbol: "opap", Kind: registry.KindPercentChange, Threshold: 5}
	pctTitle, pctBody := formatNotification(pct, 106)
	if pctTitle == "" || pctBody == "" {
		t.Fatal("percent-change should produce title and body")
	}
}
