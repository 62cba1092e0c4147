package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry is the in-memory store of device registrations. All mutation is
// synchronous; reads return copies so the monitor never observes a device
// mid-edit.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*Device
	maxAlerts int
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs an empty registry with the given per-device alert cap.
func New(maxAlerts int, logger zerolog.Logger) *Registry {
	if maxAlerts <= 0 {
		maxAlerts = 50
	}
	return &Registry{
		devices:   make(map[string]*Device),
		maxAlerts: maxAlerts,
		logger:    logger.With().Str("component", "registry").Logger(),
		now:       time.Now,
	}
}

// Register upserts a device. First registration gets default preferences;
// repeat calls refresh the push token and last-seen timestamp only.
func (r *Registry) Register(deviceID, pushToken, platform string) Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if existing, ok := r.devices[deviceID]; ok {
		existing.PushToken = pushToken
		if platform != "" {
			existing.Platform = platform
		}
		existing.LastSeen = now
		return copyDevice(existing)
	}

	device := &Device{
		ID:           deviceID,
		PushToken:    pushToken,
		Platform:     platform,
		Preferences:  DefaultPreferences(),
		RegisteredAt: now,
		LastSeen:     now,
	}
	r.devices[deviceID] = device
	r.logger.Info().Str("device", deviceID).Str("platform", platform).Msg("device registered")
	return copyDevice(device)
}

// Unregister removes a device and all alerts it owns.
func (r *Registry) Unregister(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[deviceID]; !ok {
		return false
	}
	delete(r.devices, deviceID)
	r.logger.Info().Str("device", deviceID).Msg("device unregistered")
	return true
}

// AddAlert appends an alert to the device. It rejects unknown devices,
// invalid kinds, and devices already at the alert cap; rejection is explicit,
// nothing is ever silently replaced.
func (r *Registry) AddAlert(deviceID string, spec AlertSpec) (Alert, error) {
	if !spec.Kind.Valid() {
		return Alert{}, fmt.Errorf("unsupported alert kind %q", spec.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return Alert{}, fmt.Errorf("device %s not registered", deviceID)
	}
	if len(device.Alerts) >= r.maxAlerts {
		return Alert{}, fmt.Errorf("alert limit reached (%d)", r.maxAlerts)
	}

	now := r.now().UTC()
	alert := Alert{
		ID:        fmt.Sprintf("%s-%s-%d", deviceID, spec.Symbol, now.UnixNano()),
		Symbol:    spec.Symbol,
		Name:      spec.Name,
		Kind:      spec.Kind,
		Threshold: spec.Threshold,
		Enabled:   true,
		CreatedAt: now,
	}
	device.Alerts = append(device.Alerts, alert)
	return alert, nil
}

// RemoveAlert deletes the (device, alert) pair; false when either is unknown.
func (r *Registry) RemoveAlert(deviceID, alertID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return false
	}
	for i, alert := range device.Alerts {
		if alert.ID == alertID {
			device.Alerts = append(device.Alerts[:i], device.Alerts[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleAlert flips the enabled flag; false when the pair is unknown.
func (r *Registry) ToggleAlert(deviceID, alertID string) (Alert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return Alert{}, false
	}
	for i := range device.Alerts {
		if device.Alerts[i].ID == alertID {
			device.Alerts[i].Enabled = !device.Alerts[i].Enabled
			return device.Alerts[i], true
		}
	}
	return Alert{}, false
}

// MarkTriggered stamps an alert's last-triggered time. Called by the monitor
// only after a notification was actually delivered.
func (r *Registry) MarkTriggered(deviceID, alertID string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return false
	}
	for i := range device.Alerts {
		if device.Alerts[i].ID == alertID {
			stamped := at.UTC()
			device.Alerts[i].LastTriggered = &stamped
			return true
		}
	}
	return false
}

// AlertsFor returns a copy of the device's alerts.
func (r *Registry) AlertsFor(deviceID string) ([]Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return nil, false
	}
	return copyAlerts(device.Alerts), true
}

// UpdatePreferences merges a partial update into the device's preferences and
// returns the merged result.
func (r *Registry) UpdatePreferences(deviceID string, patch PreferencesPatch) (Preferences, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return Preferences{}, false
	}

	prefs := &device.Preferences
	if patch.PriceAlerts != nil {
		prefs.PriceAlerts = *patch.PriceAlerts
	}
	if patch.NewsAlerts != nil {
		prefs.NewsAlerts = *patch.NewsAlerts
	}
	if patch.EarningsAlerts != nil {
		prefs.EarningsAlerts = *patch.EarningsAlerts
	}
	if patch.MinPercentMove != nil {
		prefs.MinPercentMove = *patch.MinPercentMove
	}
	if patch.ClearQuiet {
		prefs.QuietStart = nil
		prefs.QuietEnd = nil
	}
	if patch.QuietStart != nil {
		start := *patch.QuietStart
		prefs.QuietStart = &start
	}
	if patch.QuietEnd != nil {
		end := *patch.QuietEnd
		prefs.QuietEnd = &end
	}
	return *prefs, true
}

// PreferencesFor returns the device's current preferences.
func (r *Registry) PreferencesFor(deviceID string) (Preferences, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return Preferences{}, false
	}
	return device.Preferences, true
}

// Snapshot returns a copy of every registration, for the monitor loop.
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, copyDevice(device))
	}
	return devices
}

// Device returns a copy of one registration.
func (r *Registry) Device(deviceID string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return Device{}, false
	}
	return copyDevice(device), true
}

// Stats summarises registry contents.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Devices: len(r.devices)}
	symbols := make(map[string]struct{})
	for _, device := range r.devices {
		stats.TotalAlerts += len(device.Alerts)
		for _, alert := range device.Alerts {
			if alert.Enabled {
				stats.ActiveAlerts++
				symbols[alert.Symbol] = struct{}{}
			}
		}
	}
	stats.MonitoredSymbols = len(symbols)
	return stats
}

func copyDevice(device *Device) Device {
	out := *device
	out.Alerts = copyAlerts(device.Alerts)
	if device.Preferences.QuietStart != nil {
		start := *device.Preferences.QuietStart
		out.Preferences.QuietStart = &start
	}
	if device.Preferences.QuietEnd != nil {
		end := *device.Preferences.QuietEnd
		out.Preferences.QuietEnd = &end
	}
	return out
}

func copyAlerts(alerts []Alert) []Alert {
	out := make([]Alert, len(alerts))
	copy(out, alerts)
	for i := range out {
		if out[i].LastTriggered != nil {
			ts := *out[i].LastTriggered
			out[i].LastTriggered = &ts
		}
	}
	return out
}
