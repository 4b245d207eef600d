package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/consentd/pkg/consent"
)

// ConsentRepository keeps consent entries per browser profile
type ConsentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *sqlx.DB) *ConsentRepository {
	return &ConsentRepository{db: db, now: time.Now}
}

// Get returns the value of the profile's key, expired entries are ignored
func (r *ConsentRepository) Get(ctx context.Context, profileID, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM consent_entries
		 WHERE profile_id = ? AND key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		profileID, key, r.now().UnixMilli())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get consent entry: %w", err)
	}
	return value, true, nil
}

// Set stores the value, replacing the previous one. Zero ttl means no expiration.
func (r *ConsentRepository) Set(ctx context.Context, profileID, key, value string, ttl time.Duration) error {
	now := r.now()
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO consent_entries (profile_id, key, value, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(profile_id, key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at,
				expires_at = excluded.expires_at
		`
		if _, err := r.db.ExecContext(ctx, query, profileID, key, value, now.UnixMilli(), expires); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("set consent entry: %w", err)}
		}
		return nil
	})
}

// Delete removes the profile's key
func (r *ConsentRepository) Delete(ctx context.Context, profileID, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM consent_entries WHERE profile_id = ? AND key = ?", profileID, key); err != nil {
		return fmt.Errorf("delete consent entry: %w", err)
	}
	return nil
}

// PurgeExpired removes entries past their expiration and consent records under
// recordKey which are corrupt or written at or before cutoff
func (r *ConsentRepository) PurgeExpired(ctx context.Context, recordKey string, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM consent_entries
		WHERE (expires_at IS NOT NULL AND expires_at <= ?)
		   OR (key = ? AND CASE WHEN json_valid(value)
		       THEN COALESCE(CAST(json_extract(value, '$.timestamp') AS INTEGER), 0)
		       ELSE 0 END <= ?)
	`
	res, err := r.db.ExecContext(ctx, query, r.now().UnixMilli(), recordKey, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired consent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}
	return n, nil
}

// CountProfiles returns the number of profiles with a stored entry under key
func (r *ConsentRepository) CountProfiles(ctx context.Context, key string) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM consent_entries WHERE key = ?", key); err != nil {
		return 0, fmt.Errorf("count consent profiles: %w", err)
	}
	return count, nil
}

// ForProfile returns a consent.Backend bound to the profile
func (r *ConsentRepository) ForProfile(profileID string) consent.Backend {
	return &profileBackend{repo: r, profileID: profileID}
}

type profileBackend struct {
	repo      *ConsentRepository
	profileID string
}

func (p *profileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return p.repo.Get(ctx, p.profileID, key)
}

func (p *profileBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.repo.Set(ctx, p.profileID, key, value, ttl)
}

func (p *profileBackend) Delete(ctx context.Context, key string) error {
	return p.repo.Delete(ctx, p.profileID, key)
}
