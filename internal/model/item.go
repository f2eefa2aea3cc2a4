package model

import "time"

// TrackedItem is a catalog listing we monitor. The catalog is owned by the
// ingestion pipeline; this service only reads it.
type TrackedItem struct {
	ASIN      string    `json:"asin"`
	Name      string    `json:"name"`
	OwnPrice  float64   `json:"own_price"`
	CreatedAt time.Time `json:"created_at"`
}
