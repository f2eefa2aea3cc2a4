package model

import "time"

// Price status of an active alert relative to our own price.
const (
	PriceStatusUndercutting = "UNDERCUTTING"
	PriceStatusMatching     = "MATCHING"
	PriceStatusOverpriced   = "OVERPRICED"
)

// HijackAlert records a competitor displacing us from the Buy Box.
// At most one active alert exists per (ASIN, hijacker) pair.
type HijackAlert struct {
	ID            int64      `json:"id"`
	ASIN          string     `json:"asin"`
	HijackerID    string     `json:"hijacker_id"`
	HijackerName  string     `json:"hijacker_name"`
	OwnPrice      float64    `json:"own_price"`
	HijackerPrice float64    `json:"hijacker_price"`
	DetectedAt    time.Time  `json:"detected_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	IsActive      bool       `json:"is_active"`
}

// PriceStatus classifies the hijacker's price against ours at detection.
func (a *HijackAlert) PriceStatus() string {
	switch {
	case a.HijackerPrice < a.OwnPrice:
		return PriceStatusUndercutting
	case a.HijackerPrice == a.OwnPrice:
		return PriceStatusMatching
	default:
		return PriceStatusOverpriced
	}
}

// AlertSummary aggregates alert activity for reporting.
type AlertSummary struct {
	ActiveAlerts      int           `json:"active_alerts"`
	ResolvedAlerts    int           `json:"resolved_alerts"`
	AffectedItems     int           `json:"affected_items"`
	UniqueHijackers   int           `json:"unique_hijackers"`
	MeanTimeToResolve time.Duration `json:"mean_time_to_resolve_ns"`
}
