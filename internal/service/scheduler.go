package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"appproft-buybox-sync/internal/model"
)

// SyncScheduler triggers a sync run on a fixed interval. A tick that lands
// while the previous run is still going is skipped, not queued.
type SyncScheduler struct {
	sync     *SyncService
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

// NewSyncScheduler creates a new sync scheduler.
func NewSyncScheduler(syncSvc *SyncService, interval time.Duration) *SyncScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncScheduler{
		sync:     syncSvc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the schedule. The first run fires shortly after startup so
// a fresh deployment does not sit idle for a full interval.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Started - Interval: %v", s.interval)

	go func() {
		select {
		case <-time.After(10 * time.Second):
			s.trigger()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *SyncScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.trigger()
		case <-s.stopCh:
			log.Printf("[SyncScheduler] Stopped")
			return
		}
	}
}

func (s *SyncScheduler) trigger() {
	_, err := s.sync.RunSync(context.Background(), model.TriggerScheduled)
	if errors.Is(err, ErrSyncInProgress) {
		log.Printf("[SyncScheduler] Previous run still active, skipping tick")
		return
	}
	if err != nil {
		log.Printf("[SyncScheduler] Scheduled run failed: %v", err)
	}
}

// Stop stops the scheduler. A run already in flight finishes on its own.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.started = false
	})
}
