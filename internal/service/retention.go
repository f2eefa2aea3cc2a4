package service

import (
	"context"
	"log"
	"sync"
	"time"

	"appproft-buybox-sync/internal/repository"
)

// RetentionConfig holds configuration for the retention sweeper.
type RetentionConfig struct {
	// OfferMaxAge is how long competitor offer rows are kept.
	// Default: 90 days
	OfferMaxAge time.Duration

	// SweepInterval is how often the sweep runs.
	// Default: 24 hours
	SweepInterval time.Duration
}

// DefaultRetentionConfig returns default retention configuration.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		OfferMaxAge:   90 * 24 * time.Hour,
		SweepInterval: 24 * time.Hour,
	}
}

// RetentionSweeper periodically purges old competitor offer rows. Offers
// are raw observations and grow without bound; transitions and alerts are
// the record of truth and are never purged.
type RetentionSweeper struct {
	repo     repository.TrackingRepository
	config   RetentionConfig
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

// NewRetentionSweeper creates a new retention sweeper.
func NewRetentionSweeper(repo repository.TrackingRepository, config RetentionConfig) *RetentionSweeper {
	if config.OfferMaxAge <= 0 {
		config.OfferMaxAge = 90 * 24 * time.Hour
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 24 * time.Hour
	}

	return &RetentionSweeper{
		repo:   repo,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the retention sweeper.
func (s *RetentionSweeper) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ticker = time.NewTicker(s.config.SweepInterval)
	s.mu.Unlock()

	log.Printf("[RetentionSweeper] Started - Interval: %v, MaxAge: %v",
		s.config.SweepInterval, s.config.OfferMaxAge)

	// Run initial sweep after a short delay
	go func() {
		select {
		case <-time.After(1 * time.Minute):
			s.runSweep()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *RetentionSweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.stopCh:
			log.Printf("[RetentionSweeper] Stopped")
			return
		}
	}
}

func (s *RetentionSweeper) runSweep() {
	if _, err := s.RunNow(); err != nil {
		log.Printf("[RetentionSweeper] Error during sweep: %v", err)
	}
}

// RunNow triggers an immediate sweep and returns the rows removed.
func (s *RetentionSweeper) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.config.OfferMaxAge)
	deleted, err := s.repo.DeleteOffersBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		log.Printf("[RetentionSweeper] Purged %d old offer rows", deleted)
	} else {
		log.Printf("[RetentionSweeper] No offer rows past retention")
	}
	return deleted, nil
}

// Stop stops the retention sweeper.
func (s *RetentionSweeper) Stop() {
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
