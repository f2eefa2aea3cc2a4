package repository

import (
	"context"
	"time"

	"appproft-buybox-sync/internal/model"
)

// DiffMutation is the full set of writes produced by diffing one item.
// Implementations apply it as a single transaction so readers never see
// a status row without its matching history and alert state.
type DiffMutation struct {
	Status     model.BuyBoxStatus
	Transition *model.BuyBoxTransition // nil when ownership did not change
	Offers     []model.CompetitorOffer // full snapshot, always persisted

	// OpenAlert inserts an active alert unless one already exists for
	// the same (asin, hijacker) pair.
	OpenAlert *model.HijackAlert
	// ResolveAlerts resolves every active alert for Status.ASIN at
	// ResolvedAt.
	ResolveAlerts bool
	ResolvedAt    time.Time
}

// TrackingRepository owns Buy Box state: current status, append-only
// transition history, competitor-offer snapshots, hijack alerts and
// sync run summaries.
type TrackingRepository interface {
	// GetStatus returns the current status for an ASIN, or nil when the
	// item has never been observed.
	GetStatus(ctx context.Context, asin string) (*model.BuyBoxStatus, error)

	// ListStatuses returns the current status of every observed item.
	ListStatuses(ctx context.Context) ([]model.BuyBoxStatus, error)

	// ApplyDiff persists one item's status, history, offers and alert
	// changes as one transaction.
	ApplyDiff(ctx context.Context, mut DiffMutation) error

	// ListTransitions returns history rows for an ASIN, newest first.
	ListTransitions(ctx context.Context, asin string, limit int) ([]model.BuyBoxTransition, error)

	// DeleteOffersBefore removes competitor-offer rows collected before
	// the cutoff and reports how many were deleted.
	DeleteOffersBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// FindActiveAlert returns the active alert for (asin, hijacker), or
	// nil when none is open.
	FindActiveAlert(ctx context.Context, asin, hijackerID string) (*model.HijackAlert, error)

	// ListActiveAlerts returns all active alerts, newest first.
	ListActiveAlerts(ctx context.Context) ([]model.HijackAlert, error)

	// ListResolvedAlerts returns resolved alerts, newest first.
	ListResolvedAlerts(ctx context.Context) ([]model.HijackAlert, error)

	// CreateSyncRun inserts the run row at orchestration start.
	CreateSyncRun(ctx context.Context, run *model.SyncRun) error

	// FinishSyncRun records the run outcome.
	FinishSyncRun(ctx context.Context, run *model.SyncRun) error

	// LastSyncRun returns the most recently started run, or nil.
	LastSyncRun(ctx context.Context) (*model.SyncRun, error)

	// Close closes the underlying connection.
	Close() error
}

// CredentialRepository stores marketplace refresh credentials. The
// refresh token is encrypted before it reaches disk.
type CredentialRepository interface {
	GetCredential(ctx context.Context, marketplace string) (*model.MarketplaceCredential, error)
	SaveCredential(ctx context.Context, cred *model.MarketplaceCredential) error
}

// CatalogRepository reads the tracked-item catalog. The catalog is
// owned by the ingestion pipeline; this service never writes to it.
type CatalogRepository interface {
	// ListTrackedItems returns every item to monitor.
	ListTrackedItems(ctx context.Context) ([]model.TrackedItem, error)

	// GetOwnPrice returns our current list price for an ASIN.
	GetOwnPrice(ctx context.Context, asin string) (float64, error)
}
