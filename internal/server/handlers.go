package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quote-alerts/internal/market"
	"quote-alerts/internal/registry"
)

type registerRequest struct {
	DeviceID  string `json:"deviceId" binding:"required"`
	PushToken string `json:"pushToken" binding:"required"`
	Platform  string `json:"platform"`
}

func (s *Server) registerDevice(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := s.registry.Register(req.DeviceID, req.PushToken, req.Platform)
	c.JSON(http.StatusOK, device)
}

func (s *Server) unregisterDevice(c *gin.Context) {
	if !s.registry.Unregister(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not registered"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts, ok := s.registry.AlertsFor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not registered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) addAlert(c *gin.Context) {
	var spec registry.AlertSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, known := market.Lookup(spec.Symbol)
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown symbol"})
		return
	}
	if spec.Name == "" {
		spec.Name = info.Name
	}

	alert, err := s.registry.AddAlert(c.Param("id"), spec)
	if err != nil {
		status := http.StatusNotFound
		if strings.Contains(err.Error(), "limit") {
			status = http.StatusConflict
		} else if strings.Contains(err.Error(), "kind") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (s *Server) removeAlert(c *gin.Context) {
	if !s.registry.RemoveAlert(c.Param("id"), c.Param("alertId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleAlert(c *gin.Context) {
	alert, ok := s.registry.ToggleAlert(c.Param("id"), c.Param("alertId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) getPreferences(c *gin.Context) {
	prefs, ok := s.registry.PreferencesFor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not registered"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) updatePreferences(c *gin.Context) {
	var patch registry.PreferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if bad := invalidQuietHour(patch.QuietStart) || invalidQuietHour(patch.QuietEnd); bad {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quiet hours must be between 0 and 23"})
		return
	}

	prefs, ok := s.registry.UpdatePreferences(c.Param("id"), patch)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not registered"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) getQuote(c *gin.Context) {
	quote, fresh, ok := s.fetcher.GetQuote(c.Request.Context(), c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for symbol"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote, "fresh": fresh})
}

func (s *Server) getChart(c *gin.Context) {
	rng := c.DefaultQuery("range", "1D")
	chart, ok := s.fetcher.GetChart(c.Request.Context(), c.Param("symbol"), rng)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for symbol"})
		return
	}
	c.JSON(http.StatusOK, chart)
}

func (s *Server) refresh(c *gin.Context) {
	fetched := s.fetcher.RefreshAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"fetched": fetched})
}

func (s *Server) stats(c *gin.Context) {
	stats := s.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"devices":          stats.Devices,
		"totalAlerts":      stats.TotalAlerts,
		"activeAlerts":     stats.ActiveAlerts,
		"monitoredSymbols": stats.MonitoredSymbols,
		"monitorRunning":   s.monitor.Running(),
	})
}

func invalidQuietHour(hour *int) bool {
	return hour != nil && (*hour < 0 || *hour > 23)
}
