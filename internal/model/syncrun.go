package model

import "time"

// SyncTrigger identifies what started a run.
type SyncTrigger string

const (
	TriggerScheduled SyncTrigger = "scheduled"
	TriggerManual    SyncTrigger = "manual"
)

// SyncRun statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusTimedOut  = "timed_out"
)

// SyncRun is the persisted summary of one full-catalog sync.
type SyncRun struct {
	ID             string      `json:"id"`
	Trigger        SyncTrigger `json:"trigger"`
	Status         string      `json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	ItemsTotal     int         `json:"items_total"`
	ItemsSucceeded int         `json:"items_succeeded"`
	ItemsFailed    int         `json:"items_failed"`
	Error          string      `json:"error,omitempty"`
}
