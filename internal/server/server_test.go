package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quote-alerts/internal/cache"
	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/monitor"
	"quote-alerts/internal/provider"
	"quote-alerts/internal/push"
	"quote-alerts/internal/registry"
)

type staticSource struct {
	price float64
	err   error
}

func (s *staticSource) FetchSeries(ctx context.Context, providerSymbol, interval, rng string) (provider.Series, error) {
	if s.err != nil {
		return provider.Series{}, s.err
	}
	return provider.Series{Price: s.price, PreviousClose: s.price - 0.5}, nil
}

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, msg push.Message) push.SendResult {
	return push.SendResult{Delivered: true}
}

func newTestServer(source provider.SeriesSource, maxAlerts int) *Server {
	store := cache.New(cache.DefaultTTLs())
	f := fetcher.New(source, store, fetcher.Options{Concurrency: 4}, zerolog.Nop())
	reg := registry.New(maxAlerts, zerolog.Nop())
	mon := monitor.New(reg, f, noopNotifier{}, nil, monitor.Options{}, zerolog.Nop())
	return New(":0", reg, f, mon, zerolog.Nop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func TestDeviceAndAlertLifecycle(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 50)

	rec := doJSON(t, srv, http.MethodPost, "/v1/devices", map[string]string{
		"deviceId": "device-1", "pushToken": "tok", "platform": "ios",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: want 200 got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/devices/device-1/alerts", map[string]any{
		"symbol": "opap", "kind": "price-above", "threshold": 18.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add alert: want 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	var alert registry.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alert); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if alert.Name != "OPAP S.A." {
		t.Fatalf("alert name should default from the universe, got %q", alert.Name)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/devices/device-1/alerts/"+alert.ID+"/toggle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: want 200 got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/v1/devices/device-1/alerts/"+alert.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove: want 204 got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/v1/devices/device-1/alerts/"+alert.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove twice: want 404 got %d", rec.Code)
	}
}

func TestAddAlertCapReturnsConflict(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 1)

	doJSON(t, srv, http.MethodPost, "/v1/devices", map[string]string{"deviceId": "d", "pushToken": "t"})
	rec := doJSON(t, srv, http.MethodPost, "/v1/devices/d/alerts", map[string]any{
		"symbol": "opap", "kind": "price-above", "threshold": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first alert: want 201 got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/devices/d/alerts", map[string]any{
		"symbol": "opap", "kind": "price-above", "threshold": 2,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("capacity rejection: want 409 got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAddAlertValidation(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 50)
	doJSON(t, srv, http.MethodPost, "/v1/devices", map[string]string{"deviceId": "d", "pushToken": "t"})

	rec := doJSON(t, srv, http.MethodPost, "/v1/devices/d/alerts", map[string]any{
		"symbol": "not-listed", "kind": "price-above", "threshold": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown symbol: want 400 got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/devices/ghost/alerts", map[string]any{
		"symbol": "opap", "kind": "price-above", "threshold": 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device: want 404 got %d", rec.Code)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 50)
	doJSON(t, srv, http.MethodPost, "/v1/devices", map[string]string{"deviceId": "d", "pushToken": "t"})

	rec := doJSON(t, srv, http.MethodPatch, "/v1/devices/d/preferences", map[string]any{
		"quietStart": 22, "quietEnd": 7,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch preferences: want 200 got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPatch, "/v1/devices/d/preferences", map[string]any{
		"quietStart": 25,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range quiet hour: want 400 got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/devices/d/preferences", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get preferences: want 200 got %d", rec.Code)
	}
	var prefs registry.Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if prefs.QuietStart == nil || *prefs.QuietStart != 22 {
		t.Fatalf("quiet start should persist, got %v", prefs.QuietStart)
	}
}

func TestQuoteEndpoints(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 50)

	rec := doJSON(t, srv, http.MethodGet, "/v1/quotes/opap", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote: want 200 got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/quotes/not-listed", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown symbol: want 404 got %d", rec.Code)
	}

	failing := newTestServer(&staticSource{err: errors.New("down")}, 50)
	rec = doJSON(t, failing, http.MethodGet, "/v1/quotes/opap", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("provider down, empty cache: want 404 got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 50)
	doJSON(t, srv, http.MethodPost, "/v1/devices", map[string]string{"deviceId": "d", "pushToken": "t"})
	doJSON(t, srv, http.MethodPost, "/v1/devices/d/alerts", map[string]any{
		"symbol": "opap", "kind": "price-above", "threshold": 18,
	})

	rec := doJSON(t, srv, http.MethodGet, "/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: want 200 got %d", rec.Code)
	}

	var body struct {
		Devices          int  `json:"devices"`
		TotalAlerts      int  `json:"totalAlerts"`
		ActiveAlerts     int  `json:"activeAlerts"`
		MonitoredSymbols int  `json:"monitoredSymbols"`
		MonitorRunning   bool `json:"monitorRunning"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if body.Devices != 1 || body.TotalAlerts != 1 || body.ActiveAlerts != 1 || body.MonitoredSymbols != 1 {
		t.Fatalf("unexpected stats: %+v", body)
	}
	if body.MonitorRunning {
		t.Fatal("monitor should be idle in tests")
	}
}

func TestGracefulShutdown(t *testing.T) {
	srv := newTestServer(&staticSource{price: 18.5}, 50)
	srv.http.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown should be clean: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
