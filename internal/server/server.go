package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/monitor"
	"quote-alerts/internal/registry"
)

// Server exposes the device-facing operations over HTTP. It is a thin layer:
// all semantics live in the registry, fetcher, and monitor.
type Server struct {
	engine   *gin.Engine
	registry *registry.Registry
	fetcher  *fetcher.Fetcher
	monitor  *monitor.Monitor
	logger   zerolog.Logger
	http     *http.Server
}

// New builds the router and binds handlers.
func New(addr string, reg *registry.Registry, f *fetcher.Fetcher, mon *monitor.Monitor, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		registry: reg,
		fetcher:  f,
		monitor:  mon,
		logger:   logger.With().Str("component", "http_server").Logger(),
		http: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/devices", s.registerDevice)
	v1.DELETE("/devices/:id", s.unregisterDevice)

	v1.GET("/devices/:id/alerts", s.listAlerts)
	v1.POST("/devices/:id/alerts", s.addAlert)
	v1.DELETE("/devices/:id/alerts/:alertId", s.removeAlert)
	v1.POST("/devices/:id/alerts/:alertId/toggle", s.toggleAlert)

	v1.GET("/devices/:id/preferences", s.getPreferences)
	v1.PATCH("/devices/:id/preferences", s.updatePreferences)

	v1.GET("/quotes/:symbol", s.getQuote)
	v1.GET("/quotes/:symbol/chart", s.getChart)
	v1.POST("/refresh", s.refresh)

	v1.GET("/stats", s.stats)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
