package model

import "time"

// TransitionKind classifies a Buy Box ownership change.
type TransitionKind string

const (
	// TransitionDiscovered is the first observation of an item.
	TransitionDiscovered TransitionKind = "DISCOVERED"
	// TransitionWon means we took the Buy Box from someone else.
	TransitionWon TransitionKind = "WON"
	// TransitionLost means a competitor displaced us.
	TransitionLost TransitionKind = "LOST"
	// TransitionChanged means ownership moved between two competitors.
	TransitionChanged TransitionKind = "CHANGED"
)

// BuyBoxStatus is the current Buy Box state for one ASIN. Exactly one row
// per ASIN, upserted on every successful check.
type BuyBoxStatus struct {
	ASIN            string    `json:"asin"`
	IsOwner         bool      `json:"is_owner"`
	OwnerID         string    `json:"owner_id"`
	OwnerName       string    `json:"owner_name"`
	BuyBoxPrice     float64   `json:"buy_box_price"`
	OwnPrice        float64   `json:"own_price"`
	CompetitorCount int       `json:"competitor_count"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
}

// BuyBoxTransition is one appended history row. Rows are never mutated
// or deleted.
type BuyBoxTransition struct {
	ID            int64          `json:"id"`
	ASIN          string         `json:"asin"`
	Kind          TransitionKind `json:"kind"`
	PreviousOwner string         `json:"previous_owner"`
	NewOwner      string         `json:"new_owner"`
	PreviousPrice float64        `json:"previous_price"`
	NewPrice      float64        `json:"new_price"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
