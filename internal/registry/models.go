package registry

import "time"

// AlertKind enumerates the supported trigger conditions.
type AlertKind string

const (
	KindPriceAbove    AlertKind = "price-above"
	KindPriceBelow    AlertKind = "price-below"
	KindPercentChange AlertKind = "percent-change"
)

// Valid reports whether the kind is one of the supported conditions.
func (k AlertKind) Valid() bool {
	switch k {
	case KindPriceAbove, KindPriceBelow, KindPercentChange:
		return true
	}
	return false
}

// Alert is one user-defined trigger owned by exactly one device.
// LastTriggered and Enabled are the only mutable fields.
type Alert struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Kind          AlertKind  `json:"kind"`
	Threshold     float64    `json:"threshold"`
	Enabled       bool       `json:"enabled"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// AlertSpec is the caller-supplied part of a new alert.
type AlertSpec struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Kind      AlertKind `json:"kind"`
	Threshold float64   `json:"threshold"`
}

// Preferences controls which notifications a device receives.
// QuietStart/QuietEnd are hours of day; both must be set for quiet hours to
// apply, and start > end wraps past midnight.
type Preferences struct {
	PriceAlerts    bool    `json:"priceAlerts"`
	NewsAlerts     bool    `json:"newsAlerts"`
	EarningsAlerts bool    `json:"earningsAlerts"`
	MinPercentMove float64 `json:"minPercentMove"`
	QuietStart     *int    `json:"quietStart,omitempty"`
	QuietEnd       *int    `json:"quietEnd,omitempty"`
}

// DefaultPreferences applied on first registration.
func DefaultPreferences() Preferences {
	return Preferences{
		PriceAlerts:    true,
		NewsAlerts:     true,
		EarningsAlerts: false,
		MinPercentMove: 2.0,
	}
}

// PreferencesPatch carries a partial preferences update; nil fields keep the
// current value.
type PreferencesPatch struct {
	PriceAlerts    *bool    `json:"priceAlerts,omitempty"`
	NewsAlerts     *bool    `json:"newsAlerts,omitempty"`
	EarningsAlerts *bool    `json:"earningsAlerts,omitempty"`
	MinPercentMove *float64 `json:"minPercentMove,omitempty"`
	QuietStart     *int     `json:"quietStart,omitempty"`
	QuietEnd       *int     `json:"quietEnd,omitempty"`
	ClearQuiet     bool     `json:"clearQuiet,omitempty"`
}

// Device is one registered push target and the alerts it owns. Alerts do not
// outlive their device's registration.
type Device struct {
	ID           string      `json:"id"`
	PushToken    string      `json:"pushToken"`
	Platform     string      `json:"platform"`
	Alerts       []Alert     `json:"alerts"`
	Preferences  Preferences `json:"preferences"`
	RegisteredAt time.Time   `json:"registeredAt"`
	LastSeen     time.Time   `json:"lastSeen"`
}

// Stats summarises registry contents for the stats endpoint.
type Stats struct {
	Devices          int `json:"devices"`
	TotalAlerts      int `json:"totalAlerts"`
	ActiveAlerts     int `json:"activeAlerts"`
	MonitoredSymbols int `json:"monitoredSymbols"`
}
