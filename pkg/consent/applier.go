package consent

import (
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/consentd/pkg/domain"
)

// Toggler switches a loaded third-party integration on or off
type Toggler interface {
	SetEnabled(enabled bool)
}

// TogglerFunc is an adapter to allow ordinary functions as Toggler
type TogglerFunc func(enabled bool)

// SetEnabled calls f(enabled)
func (f TogglerFunc) SetEnabled(enabled bool) { f(enabled) }

// Integration is a third-party tag controlled by one cookie category.
// Lookup returns nil while the integration's script is not loaded.
type Integration struct {
	Name     string
	Category domain.Category
	Lookup   func() Toggler
}

// Applier translates a record into integration toggles. Repeated Apply with the
// same preferences doesn't touch integrations again.
type Applier struct {
	integrations []Integration

	mu      sync.Mutex
	applied map[string]bool
}

// NewApplier makes an applier for the given integrations
func NewApplier(integrations ...Integration) *Applier {
	return &Applier{integrations: integrations, applied: map[string]bool{}}
}

// Apply enables essential cookies and toggles every integration by record preferences
func (a *Applier) Apply(rec domain.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lgr.Printf("[DEBUG] essential cookies enabled")
	for _, in := range a.integrations {
		enabled := rec.Preferences.Allowed(in.Category)
		if prev, ok := a.applied[in.Name]; ok && prev == enabled {
			continue
		}
		var t Toggler
		if in.Lookup != nil {
			t = in.Lookup()
		}
		if t == nil {
			lgr.Printf("[DEBUG] integration %s not loaded, skipped", in.Name)
			continue
		}
		t.SetEnabled(enabled)
		a.applied[in.Name] = enabled
		lgr.Printf("[DEBUG] integration %s (%s) enabled=%v", in.Name, in.Category, enabled)
	}
}
