package cache

import (
	"sync"
	"time"

	"quote-alerts/internal/market"
)

// TTLs select a freshness window per payload type. Intraday data expires fast,
// longer chart ranges are allowed to age.
type TTLs struct {
	Quote         time.Duration `mapstructure:"quote"`
	IntradayChart time.Duration `mapstructure:"intraday_chart"`
	HistoryChart  time.Duration `mapstructure:"history_chart"`
}

// DefaultTTLs mirrors the freshness windows the mobile client expects.
func DefaultTTLs() TTLs {
	return TTLs{
		Quote:         60 * time.Second,
		IntradayChart: 60 * time.Second,
		HistoryChart:  300 * time.Second,
	}
}

type quoteEntry struct {
	quote    market.Quote
	storedAt time.Time
}

type chartEntry struct {
	chart    market.ChartResponse
	storedAt time.Time
}

type chartKey struct {
	symbol string
	rng    string
}

// Store holds per-symbol quotes and per-(symbol, range) chart responses.
// Entries are never evicted; a newer write supersedes, and the fetch layer may
// knowingly read a stale entry when the upstream is down.
type Store struct {
	mu     sync.RWMutex
	ttls   TTLs
	quotes map[string]quoteEntry
	charts map[chartKey]chartEntry
	now    func() time.Time
}

// New constructs an empty store with the given TTL policy.
func New(ttls TTLs) *Store {
	if ttls.Quote <= 0 {
		ttls.Quote = DefaultTTLs().Quote
	}
	if ttls.IntradayChart <= 0 {
		ttls.IntradayChart = DefaultTTLs().IntradayChart
	}
	if ttls.HistoryChart <= 0 {
		ttls.HistoryChart = DefaultTTLs().HistoryChart
	}
	return &Store{
		ttls:   ttls,
		quotes: make(map[string]quoteEntry),
		charts: make(map[chartKey]chartEntry),
		now:    time.Now,
	}
}

// Get returns the cached quote for symbol. fresh reports whether the entry is
// still within its TTL; callers must opt into using a stale value.
func (s *Store) Get(symbol string) (quote market.Quote, fresh bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.quotes[symbol]
	if !ok {
		return market.Quote{}, false, false
	}
	return entry.quote, s.isFresh(entry.storedAt, s.ttls.Quote), true
}

// Put stores a quote, superseding any previous entry for the symbol.
func (s *Store) Put(symbol string, quote market.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = quoteEntry{quote: quote, storedAt: s.now()}
}

// GetChart returns the cached chart for (symbol, range).
func (s *Store) GetChart(symbol, rng string) (chart market.ChartResponse, fresh bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.charts[chartKey{symbol: symbol, rng: rng}]
	if !ok {
		return market.ChartResponse{}, false, false
	}
	return entry.chart, s.isFresh(entry.storedAt, s.chartTTL(rng)), true
}

// PutChart stores a chart response keyed by (symbol, range).
func (s *Store) PutChart(symbol, rng string, chart market.ChartResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charts[chartKey{symbol: symbol, rng: rng}] = chartEntry{chart: chart, storedAt: s.now()}
}

// Invalidate marks every quote entry stale by rewinding its stored timestamp.
// Used by the cache-busting refresh endpoint; the data stays available for
// stale-serving until the next successful fetch overwrites it.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := s.now().Add(-s.ttls.Quote - time.Second)
	for symbol, entry := range s.quotes {
		entry.storedAt = expired
		s.quotes[symbol] = entry
	}
}

func (s *Store) chartTTL(rng string) time.Duration {
	if rng == "1D" {
		return s.ttls.IntradayChart
	}
	return s.ttls.HistoryChart
}

func (s *Store) isFresh(storedAt time.Time, ttl time.Duration) bool {
	if storedAt.IsZero() {
		return false
	}
	return s.now().Sub(storedAt) < ttl
}
