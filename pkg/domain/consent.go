package domain

import (
	"fmt"
	"math"
	"time"
)

// Status is the user's consent decision
type Status string

// consent statuses
const (
	StatusAccepted      Status = "accepted"
	StatusDeclined      Status = "declined"
	StatusCustomized    Status = "customized"
	StatusEssentialOnly Status = "essential-only"
	// StatusNoConsent is reported by summaries when there is no valid record
	StatusNoConsent Status = "no-consent"
)

// Category is a cookie category the user can allow or deny
type Category string

// cookie categories
const (
	CategoryEssential Category = "essential"
	CategoryAnalytics Category = "analytics"
	CategoryMarketing Category = "marketing"
)

// ParseCategory converts a string to a known category
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryEssential, CategoryAnalytics, CategoryMarketing:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cookie category %q", s)
	}
}

// Preferences holds per-category consent flags. Essential is always true.
type Preferences struct {
	Essential bool `json:"essential"`
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// Normalize returns a copy with the essential category enforced
func (p Preferences) Normalize() Preferences {
	p.Essential = true
	return p
}

// Allowed reports whether the category is allowed by these preferences
func (p Preferences) Allowed(c Category) bool {
	switch c {
	case CategoryEssential:
		return true
	case CategoryAnalytics:
		return p.Analytics
	case CategoryMarketing:
		return p.Marketing
	default:
		return false
	}
}

// Merge applies patch on top of a copy of p. Essential can't be changed by a patch.
func (p Preferences) Merge(patch map[Category]bool) Preferences {
	for c, v := range patch {
		switch c {
		case CategoryAnalytics:
			p.Analytics = v
		case CategoryMarketing:
			p.Marketing = v
		}
	}
	return p.Normalize()
}

// StatusFor returns the status for preferences saved from the settings dialog
func StatusFor(p Preferences) Status {
	if p.Analytics || p.Marketing {
		return StatusCustomized
	}
	return StatusEssentialOnly
}

// Record is the persisted consent state of a browser profile
type Record struct {
	Status      Status      `json:"status"`
	Timestamp   int64       `json:"timestamp"` // epoch milliseconds
	Preferences Preferences `json:"preferences"`
}

// NewRecord makes a record stamped with the given time
func NewRecord(status Status, prefs Preferences, now time.Time) Record {
	return Record{Status: status, Timestamp: now.UnixMilli(), Preferences: prefs.Normalize()}
}

// Time returns the record timestamp as time.Time
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Expired reports whether the record is outside of the retention window.
// A record without timestamp is always expired.
func (r Record) Expired(now time.Time, retention time.Duration) bool {
	if r.Timestamp <= 0 {
		return true
	}
	return r.Timestamp <= now.Add(-retention).UnixMilli()
}

// Event is broadcast every time consent is applied
type Event struct {
	ProfileID   string      `json:"profile_id,omitempty"`
	Status      Status      `json:"status"`
	Preferences Preferences `json:"preferences"`
	Timestamp   int64       `json:"timestamp"`
}

// EventFor builds a change event from a record
func EventFor(profileID string, r Record) Event {
	return Event{ProfileID: profileID, Status: r.Status, Preferences: r.Preferences, Timestamp: r.Timestamp}
}

// Summary is a read-only projection of the current consent
type Summary struct {
	HasConsent      bool         `json:"hasConsent"`
	Status          Status       `json:"status"`
	LastUpdated     *time.Time   `json:"lastUpdated"`
	Preferences     *Preferences `json:"preferences"`
	DaysUntilExpiry int          `json:"daysUntilExpiry,omitempty"`
}

// Summarize builds a summary. Pass nil for "no record".
func Summarize(r *Record, now time.Time, retention time.Duration) Summary {
	if r == nil {
		return Summary{Status: StatusNoConsent}
	}
	updated := r.Time()
	prefs := r.Preferences
	left := r.Time().Add(retention).Sub(now)
	return Summary{
		HasConsent:      true,
		Status:          r.Status,
		LastUpdated:     &updated,
		Preferences:     &prefs,
		DaysUntilExpiry: int(math.Ceil(left.Hours() / 24)),
	}
}
