package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"appproft-buybox-sync/internal/cache"
	"appproft-buybox-sync/internal/engine"
	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/repository"
	"appproft-buybox-sync/internal/token"
	"appproft-buybox-sync/pkg/uid"
)

// ErrSyncInProgress is returned when a run is requested while another run
// is still active. The caller reports busy instead of queueing.
var ErrSyncInProgress = errors.New("sync already in progress")

// OfferFetcher fetches the current offer snapshot for one ASIN.
type OfferFetcher interface {
	GetItemOffers(ctx context.Context, asin string) (*model.OfferSnapshot, error)
}

// TokenChecker verifies API credentials before a run touches any item.
type TokenChecker interface {
	AccessToken(ctx context.Context) (string, error)
}

// SyncConfig holds orchestration settings for the sync service.
type SyncConfig struct {
	BatchSize   int
	BatchPause  time.Duration
	Concurrency int
	RunTimeout  time.Duration
}

// SyncService orchestrates full-catalog Buy Box syncs. At most one run is
// active at a time; overlapping requests are rejected, never queued.
type SyncService struct {
	catalog  repository.CatalogRepository
	tracking repository.TrackingRepository
	fetcher  OfferFetcher
	tokens   TokenChecker
	sellers  *cache.SellerNameCache
	self     engine.SellerIdentity
	config   SyncConfig

	runMu   sync.Mutex
	running atomic.Bool
}

// NewSyncService creates a new sync service.
func NewSyncService(
	catalog repository.CatalogRepository,
	tracking repository.TrackingRepository,
	fetcher OfferFetcher,
	tokens TokenChecker,
	sellers *cache.SellerNameCache,
	self engine.SellerIdentity,
	config SyncConfig,
) *SyncService {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}

	return &SyncService{
		catalog:  catalog,
		tracking: tracking,
		fetcher:  fetcher,
		tokens:   tokens,
		sellers:  sellers,
		self:     self,
		config:   config,
	}
}

// SyncStatus is the answer to "what is the sync doing right now".
type SyncStatus struct {
	Running bool           `json:"running"`
	LastRun *model.SyncRun `json:"last_run,omitempty"`
}

// Status reports whether a run is active and the most recent run record.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	last, err := s.tracking.LastSyncRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last sync run: %w", err)
	}
	return &SyncStatus{Running: s.running.Load(), LastRun: last}, nil
}

// RunSync executes one full-catalog sync. Returns ErrSyncInProgress when
// another run holds the lock.
func (s *SyncService) RunSync(ctx context.Context, trigger model.SyncTrigger) (*model.SyncRun, error) {
	if !s.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.runMu.Unlock()

	return s.run(ctx, trigger)
}

// StartManual launches a manual run in the background. The busy check is
// synchronous so the caller can report conflict immediately.
func (s *SyncService) StartManual() error {
	if !s.runMu.TryLock() {
		return ErrSyncInProgress
	}
	go func() {
		defer s.runMu.Unlock()
		if _, err := s.run(context.Background(), model.TriggerManual); err != nil {
			log.Printf("[SyncService] Manual run failed: %v", err)
		}
	}()
	return nil
}

// run executes one sync. The caller must hold runMu.
func (s *SyncService) run(ctx context.Context, trigger model.SyncTrigger) (*model.SyncRun, error) {
	s.running.Store(true)
	defer s.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	items, err := s.catalog.ListTrackedItems(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked items: %w", err)
	}

	run := &model.SyncRun{
		ID:         uid.New(),
		Trigger:    trigger,
		Status:     model.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		ItemsTotal: len(items),
	}
	if err := s.tracking.CreateSyncRun(runCtx, run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	log.Printf("[SyncService] Run %s started (%s): %d items", run.ID, trigger, len(items))

	// Credential pre-flight. A dead refresh token fails every item the
	// same way, so the run aborts before touching any of them.
	if _, err := s.tokens.AccessToken(runCtx); err != nil {
		log.Printf("[SyncService] Run %s aborted: credential check failed: %v", run.ID, err)
		return s.finish(run, 0, 0, err)
	}

	var succeeded, failed atomic.Int64
	var abortErr error

	for start := 0; start < len(items); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(items) {
			end = len(items)
		}

		g, gctx := errgroup.WithContext(runCtx)
		g.SetLimit(s.config.Concurrency)
		for _, item := range items[start:end] {
			item := item
			g.Go(func() error {
				if err := s.syncItem(gctx, item); err != nil {
					var authErr *token.AuthError
					if errors.As(err, &authErr) {
						// Authorization died mid-run. Nothing left
						// to gain from the remaining items.
						return err
					}
					failed.Add(1)
					log.Printf("[SyncService] Run %s: item %s failed: %v", run.ID, item.ASIN, err)
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			abortErr = err
			break
		}
		if runCtx.Err() != nil {
			break
		}

		if end < len(items) && s.config.BatchPause > 0 {
			select {
			case <-time.After(s.config.BatchPause):
			case <-runCtx.Done():
			}
		}
		if runCtx.Err() != nil {
			break
		}
	}

	return s.finish(run, int(succeeded.Load()), int(failed.Load()), firstError(abortErr, runCtx.Err()))
}

// finish records the run outcome and returns the finished record.
// Persisting the outcome uses a fresh context so a timed-out run still
// gets written.
func (s *SyncService) finish(run *model.SyncRun, succeeded, failed int, cause error) (*model.SyncRun, error) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.ItemsSucceeded = succeeded
	run.ItemsFailed = failed

	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		run.Status = model.RunStatusTimedOut
		run.Error = fmt.Sprintf("run exceeded %v", s.config.RunTimeout)
	case cause != nil:
		run.Status = model.RunStatusFailed
		run.Error = cause.Error()
	case failed == 0:
		run.Status = model.RunStatusCompleted
	case succeeded == 0 && run.ItemsTotal > 0:
		run.Status = model.RunStatusFailed
		run.Error = "every item failed"
	default:
		run.Status = model.RunStatusPartial
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.tracking.FinishSyncRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to record sync run outcome: %w", err)
	}

	log.Printf("[SyncService] Run %s finished: status=%s succeeded=%d failed=%d",
		run.ID, run.Status, succeeded, failed)
	return run, nil
}

// syncItem fetches, diffs, and persists one item. A failure here leaves
// the item's persisted state untouched.
func (s *SyncService) syncItem(ctx context.Context, item model.TrackedItem) error {
	snap, err := s.fetcher.GetItemOffers(ctx, item.ASIN)
	if err != nil {
		return err
	}

	s.rememberSellers(ctx, snap)

	next := engine.Reduce(s.self, item.OwnPrice, snap)
	if !next.IsOwner && next.OwnerID != "" && next.OwnerName == "" {
		next.OwnerName = s.sellers.Lookup(ctx, next.OwnerID)
	}

	prev, err := s.tracking.GetStatus(ctx, item.ASIN)
	if err != nil {
		return err
	}

	res := engine.Diff(prev, next, snap.CollectedAt)

	mut := repository.DiffMutation{
		Status:     res.Status,
		Transition: res.Transition,
		Offers:     snap.Offers,
	}
	switch res.Alert {
	case engine.AlertOpen:
		mut.OpenAlert = &model.HijackAlert{
			ASIN:          item.ASIN,
			HijackerID:    res.Status.OwnerID,
			HijackerName:  res.Status.OwnerName,
			OwnPrice:      item.OwnPrice,
			HijackerPrice: res.Status.BuyBoxPrice,
			DetectedAt:    snap.CollectedAt,
			IsActive:      true,
		}
	case engine.AlertResolveAll:
		mut.ResolveAlerts = true
		mut.ResolvedAt = snap.CollectedAt
	}

	return s.tracking.ApplyDiff(ctx, mut)
}

// rememberSellers feeds seller names from the snapshot into the cache.
func (s *SyncService) rememberSellers(ctx context.Context, snap *model.OfferSnapshot) {
	for i := range snap.Offers {
		offer := &snap.Offers[i]
		if err := s.sellers.Remember(ctx, offer.SellerID, offer.SellerName); err != nil {
			log.Printf("[SyncService] Failed to cache seller name for %s: %v", offer.SellerID, err)
		}
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
