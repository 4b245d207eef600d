// Package scheduler runs background maintenance of the consent store
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// Database interface for scheduler operations
type Database interface {
	PurgeExpired(ctx context.Context, recordKey string, cutoff time.Time) (int64, error)
}

// Config holds scheduler configuration
type Config struct {
	PurgeInterval time.Duration
	Retention     time.Duration
	RecordKey     string
	Now           func() time.Time
}

// Scheduler periodically removes expired and corrupt consent records, so they
// don't stay around until the profile comes back
type Scheduler struct {
	db            Database
	purgeInterval time.Duration
	retention     time.Duration
	recordKey     string
	now           func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance
func NewScheduler(database Database, cfg Config) *Scheduler {
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = 6 * time.Hour
	}
	if cfg.Retention == 0 {
		cfg.Retention = 365 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		db:            database,
		purgeInterval: cfg.PurgeInterval,
		retention:     cfg.Retention,
		recordKey:     cfg.RecordKey,
		now:           cfg.Now,
	}
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.purgeWorker(ctx)

	lgr.Printf("[INFO] scheduler started with purge interval %v", s.purgeInterval)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// PurgeNow removes expired records immediately
func (s *Scheduler) PurgeNow(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.db.PurgeExpired(ctx, s.recordKey, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		lgr.Printf("[INFO] purged %d expired consent entries", n)
	}
	return n, nil
}

// purgeWorker runs purge on start and then every purgeInterval
func (s *Scheduler) purgeWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	// run immediately on start
	s.purge(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	if _, err := s.PurgeNow(ctx); err != nil && ctx.Err() == nil {
		lgr.Printf("[ERROR] failed to purge expired consent: %v", err)
	}
}
