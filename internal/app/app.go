package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"quote-alerts/internal/cache"
	"quote-alerts/internal/config"
	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/monitor"
	"quote-alerts/internal/provider"
	"quote-alerts/internal/push"
	"quote-alerts/internal/registry"
	"quote-alerts/internal/scheduler"
	"quote-alerts/internal/server"
	"quote-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() *fetcher.Fetcher {
	store := cache.New(cache.TTLs{
		Quote:         a.Config.Cache.QuoteTTL,
		IntradayChart: a.Config.Cache.IntradayChartTTL,
		HistoryChart:  a.Config.Cache.HistoryChartTTL,
	})

	source := provider.NewYahoo(provider.Options{
		BaseURL:   a.Config.Provider.BaseURL,
		Timeout:   a.Config.Provider.RequestTimeout,
		UserAgent: a.Config.Provider.UserAgent,
	}, a.Logger)

	return fetcher.New(source, store, fetcher.Options{
		Concurrency:   a.Config.Fetch.Concurrency,
		QuoteInterval: a.Config.Fetch.QuoteInterval,
		QuoteRange:    a.Config.Fetch.QuoteRange,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service and HTTP API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; notification auditing disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	f := a.newFetcher()
	reg := registry.New(a.Config.Registry.MaxAlertsPerDevice, a.Logger)

	notifier := push.NewGatewayNotifier(push.Options{
		BaseURL:   a.Config.Push.GatewayURL,
		AuthToken: a.Config.Push.AuthToken,
		Timeout:   a.Config.Push.RequestTimeout,
	}, a.Logger)

	var audit storage.NotificationStore
	if store != nil {
		audit = store
	}

	mon := monitor.New(reg, f, notifier, audit, monitor.Options{
		Cooldown:            a.Config.Monitor.Cooldown,
		SkipStaleQuotes:     a.Config.Monitor.SkipStaleQuotes,
		DeliveryConcurrency: a.Config.Monitor.DeliveryConcurrency,
	}, a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.Interval,
		AlignToStart: a.Config.Monitor.AlignToInterval,
		StartupDelay: a.Config.Monitor.StartupDelay,
		RunAtStart:   true,
	}, a.Logger)

	srv := server.New(a.Config.Server.Addr, reg, f, mon, a.Logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- sched.Run(ctx, func(ctx context.Context) error {
			_, err := mon.RunCheck(ctx)
			return err
		})
	}()
	go func() {
		errCh <- srv.Run(ctx)
	}()

	a.Logger.Info().Msg("monitoring service started")
	err = <-errCh
	cancel()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}
