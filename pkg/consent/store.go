// Package consent implements the cookie-consent preference manager: the composed
// storage provider, the UI state machine, the applier and the change notifier.
// Nothing here knows about HTML, rendering goes through the Presenter interface.
package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/consentd/pkg/domain"
)

const (
	// StorageKey is the key of the primary entry and the name of the fallback cookie
	StorageKey = "echai-cookie-consent"
	// Retention is how long a record stays valid
	Retention = 365 * 24 * time.Hour

	legacyAnalyticsKey = "analytics-cookies"
	legacyMarketingKey = "marketing-cookies"
)

// ErrUnavailable is returned by backends which can't be used at all
var ErrUnavailable = errors.New("storage unavailable")

// Backend is a key-value storage channel. Zero ttl means no expiration.
type Backend interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StoreOpts defines optional parameters of the Store
type StoreOpts struct {
	Key            string        // storage key, StorageKey by default
	Retention      time.Duration // record validity window and fallback ttl, Retention by default
	MirrorFallback bool          // write fallback on every write, not only when primary fails
	MigrateLegacy  bool          // migrate legacy per-category keys found in primary
	Now            func() time.Time
}

// Store reads and writes the single consent record of a profile. Primary backend
// keeps the full record, fallback only the bare status string. Store never fails,
// storage errors are logged and downgraded to the fallback path.
type Store struct {
	primary  Backend
	fallback Backend
	opts     StoreOpts
}

// NewStore makes a store. Either backend can be nil, it is treated as unavailable.
func NewStore(primary, fallback Backend, opts StoreOpts) *Store {
	if opts.Key == "" {
		opts.Key = StorageKey
	}
	if opts.Retention <= 0 {
		opts.Retention = Retention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{primary: primary, fallback: fallback, opts: opts}
}

// Write persists the record. Essential category is always stored as allowed.
func (s *Store) Write(ctx context.Context, rec domain.Record) {
	rec.Preferences = rec.Preferences.Normalize()

	err := s.writePrimary(ctx, rec)
	if err == nil && !s.opts.MirrorFallback {
		return
	}
	if err != nil {
		lgr.Printf("[WARN] primary consent storage failed, using cookie fallback: %v", err)
	}
	s.writeFallback(ctx, rec)
}

// Read returns the current valid record, false if there is none
func (s *Store) Read(ctx context.Context) (domain.Record, bool) {
	rec, res := s.readPrimary(ctx)
	switch res {
	case primaryFound:
		return rec, true
	case primaryRejected:
		return domain.Record{}, false
	case primaryEmpty:
		if s.opts.MigrateLegacy {
			if rec, ok := s.migrateLegacy(ctx); ok {
				return rec, true
			}
		}
	}
	return s.readFallback(ctx)
}

// Clear removes both primary and fallback representations
func (s *Store) Clear(ctx context.Context) {
	if s.primary != nil {
		if err := s.primary.Delete(ctx, s.opts.Key); err != nil {
			lgr.Printf("[WARN] can't clear primary consent storage: %v", err)
		}
	}
	if s.fallback != nil {
		if err := s.fallback.Delete(ctx, s.opts.Key); err != nil {
			lgr.Printf("[WARN] can't clear fallback consent storage: %v", err)
		}
	}
}

func (s *Store) writePrimary(ctx context.Context, rec domain.Record) error {
	if s.primary == nil {
		return ErrUnavailable
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal consent record: %w", err)
	}
	if err := s.primary.Set(ctx, s.opts.Key, string(data), 0); err != nil {
		return fmt.Errorf("set %s: %w", s.opts.Key, err)
	}
	return nil
}

// writeFallback stores the bare status with the retention ttl
func (s *Store) writeFallback(ctx context.Context, rec domain.Record) {
	if s.fallback == nil {
		lgr.Printf("[WARN] no fallback consent storage, status %q not saved", rec.Status)
		return
	}
	if err := s.fallback.Set(ctx, s.opts.Key, string(rec.Status), s.opts.Retention); err != nil {
		lgr.Printf("[WARN] fallback consent storage failed: %v", err)
	}
}

type primaryResult int

const (
	primaryEmpty       primaryResult = iota
	primaryFound                     // valid record
	primaryRejected                  // corrupt or expired, purged
	primaryUnavailable               // backend missing or failing
)

func (s *Store) readPrimary(ctx context.Context) (domain.Record, primaryResult) {
	if s.primary == nil {
		return domain.Record{}, primaryUnavailable
	}
	value, ok, err := s.primary.Get(ctx, s.opts.Key)
	if err != nil {
		lgr.Printf("[WARN] primary consent storage not readable, checking cookie fallback: %v", err)
		return domain.Record{}, primaryUnavailable
	}
	if !ok || value == "" {
		return domain.Record{}, primaryEmpty
	}

	rec, err := parseRecord(value)
	if err != nil {
		lgr.Printf("[WARN] corrupt consent record purged: %v", err)
		if derr := s.primary.Delete(ctx, s.opts.Key); derr != nil {
			lgr.Printf("[WARN] can't purge corrupt consent record: %v", derr)
		}
		return domain.Record{}, primaryRejected
	}

	if rec.Expired(s.opts.Now(), s.opts.Retention) {
		lgr.Printf("[DEBUG] consent record from %s expired, purged", rec.Time().UTC().Format(time.RFC3339))
		s.Clear(ctx)
		return domain.Record{}, primaryRejected
	}
	return rec, primaryFound
}

// readFallback reconstructs a minimal record from the bare status. Fallback keeps
// neither per-category choices nor the original time, so the record is stamped now.
func (s *Store) readFallback(ctx context.Context) (domain.Record, bool) {
	if s.fallback == nil {
		return domain.Record{}, false
	}
	value, ok, err := s.fallback.Get(ctx, s.opts.Key)
	if err != nil {
		lgr.Printf("[WARN] fallback consent storage not readable: %v", err)
		return domain.Record{}, false
	}
	if !ok || value == "" {
		return domain.Record{}, false
	}
	accepted := domain.Status(value) == domain.StatusAccepted
	prefs := domain.Preferences{Analytics: accepted, Marketing: accepted}
	return domain.NewRecord(domain.Status(value), prefs, s.opts.Now()), true
}

// migrateLegacy converts legacy "analytics-cookies"/"marketing-cookies" flags into a record
func (s *Store) migrateLegacy(ctx context.Context) (domain.Record, bool) {
	analytics, aok, aerr := s.primary.Get(ctx, legacyAnalyticsKey)
	marketing, mok, merr := s.primary.Get(ctx, legacyMarketingKey)
	if aerr != nil || merr != nil || (!aok && !mok) {
		return domain.Record{}, false
	}

	prefs := domain.Preferences{Analytics: analytics == "true", Marketing: marketing == "true"}
	rec := domain.NewRecord(domain.StatusFor(prefs), prefs, s.opts.Now())

	// legacy keys stay in place until the record is safely in primary
	if err := s.writePrimary(ctx, rec); err != nil {
		lgr.Printf("[WARN] can't persist migrated consent, legacy keys kept: %v", err)
		s.writeFallback(ctx, rec)
		return rec, true
	}
	if s.opts.MirrorFallback {
		s.writeFallback(ctx, rec)
	}
	for _, key := range []string{legacyAnalyticsKey, legacyMarketingKey} {
		if err := s.primary.Delete(ctx, key); err != nil {
			lgr.Printf("[WARN] can't remove legacy consent key %s: %v", key, err)
		}
	}
	lgr.Printf("[INFO] migrated legacy consent flags, status %q", rec.Status)
	return rec, true
}

// parseRecord decodes and validates a stored record
func parseRecord(value string) (domain.Record, error) {
	var raw struct {
		Status      domain.Status       `json:"status"`
		Timestamp   int64               `json:"timestamp"`
		Preferences *domain.Preferences `json:"preferences"`
	}
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return domain.Record{}, fmt.Errorf("unmarshal consent record: %w", err)
	}
	if raw.Status == "" {
		return domain.Record{}, errors.New("consent record without status")
	}
	if raw.Preferences == nil {
		return domain.Record{}, errors.New("consent record without preferences")
	}
	return domain.Record{Status: raw.Status, Timestamp: raw.Timestamp, Preferences: raw.Preferences.Normalize()}, nil
}
