package monitor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quote-alerts/internal/registry"
)

// formatNotification renders the per-kind title and body shown on the device.
func formatNotification(alert registry.Alert, price float64) (title, body string) {
	name := alert.Name
	if name == "" {
		name = alert.Symbol
	}

	current := decimal.NewFromFloat(price).StringFixed(2)
	threshold := decimal.NewFromFloat(alert.Threshold).StringFixed(2)

	switch alert.Kind {
	case registry.KindPriceAbove:
		title = fmt.Sprintf("📈 %s above %s", name, threshold)
		body = fmt.Sprintf("%s is trading at %s, above your %s target.", name, current, threshold)
	case registry.KindPriceBelow:
		title = fmt.Sprintf("📉 %s below %s", name, threshold)
		body = fmt.Sprintf("%s is trading at %s, below your %s target.", name, current, threshold)
	case registry.KindPercentChange:
		title = fmt.Sprintf("⚡ %s moved %s%%+", name, decimal.NewFromFloat(alert.Threshold).String())
		body = fmt.Sprintf("%s moved more than %s%% and is now at %s.", name, decimal.NewFromFloat(alert.Threshold).String(), current)
	default:
		title = fmt.Sprintf("%s alert", name)
		body = fmt.Sprintf("%s is at %s.", name, current)
	}
	return title, body
}
