package consent

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/consentd/pkg/domain"
)

// State of the consent UI
type State int

// UI states
const (
	StateNoConsent State = iota
	StateBannerVisible
	StateSettingsOpen
	StateDecided
)

func (s State) String() string {
	switch s {
	case StateNoConsent:
		return "no-consent"
	case StateBannerVisible:
		return "banner-visible"
	case StateSettingsOpen:
		return "settings-open"
	case StateDecided:
		return "decided"
	default:
		return "unknown"
	}
}

// SavedNotice is shown after preferences are saved from the settings dialog
const SavedNotice = "Cookie preferences saved successfully!"

// Presenter renders state transitions. Delays are cosmetic, used for entrance animations.
type Presenter interface {
	ShowBanner(delay time.Duration)
	HideBanner()
	OpenSettings(prefs domain.Preferences)
	CloseSettings()
	ShowNotice(message string, ttl time.Duration)
	ShowFloatingLink(delay time.Duration)
}

// Timings of cosmetic UI delays
type Timings struct {
	BannerDelay       time.Duration // before the banner slides in
	FloatingLinkDelay time.Duration // before the floating link appears after a decision
	NoticeTTL         time.Duration // how long the success notice stays
}

// DefaultTimings returns delays matching the site's animations
func DefaultTimings() Timings {
	return Timings{BannerDelay: 100 * time.Millisecond, FloatingLinkDelay: 500 * time.Millisecond, NoticeTTL: 3 * time.Second}
}

// ManagerOpts holds dependencies of Manager
type ManagerOpts struct {
	Store     *Store
	Applier   *Applier
	Publisher Publisher
	Presenter Presenter
	Timings   Timings
	ProfileID string           // added to published events
	State     State            // state of the page the manager is attached to
	Now       func() time.Time // clock, time.Now by default
}

// Manager is the consent state machine of a single page. It is not safe for
// concurrent use, all calls are expected from one event loop or request.
type Manager struct {
	store     *Store
	applier   *Applier
	publisher Publisher
	presenter Presenter
	timings   Timings
	profileID string
	now       func() time.Time

	state        State
	floatingLink bool
}

// NewManager makes a consent manager. Missing applier, publisher or presenter are no-ops.
func NewManager(opts ManagerOpts) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Applier == nil {
		opts.Applier = NewApplier()
	}
	if opts.Publisher == nil {
		opts.Publisher = Publishers{}
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Store == nil {
		opts.Store = NewStore(nil, nil, StoreOpts{Now: opts.Now})
	}
	return &Manager{
		store:     opts.Store,
		applier:   opts.Applier,
		publisher: opts.Publisher,
		presenter: opts.Presenter,
		timings:   opts.Timings,
		profileID: opts.ProfileID,
		now:       opts.Now,
		state:     opts.State,
	}
}

// State returns the current UI state
func (m *Manager) State() State {
	return m.state
}

// Init runs on page load. Shows the banner if there is no valid record,
// otherwise applies stored preferences and shows the floating link.
func (m *Manager) Init(ctx context.Context) {
	rec, ok := m.store.Read(ctx)
	if !ok {
		m.state = StateNoConsent
		m.ShowBanner()
		return
	}
	m.state = StateDecided
	m.apply(rec)
	m.showFloatingLink(0)
}

// ShowBanner forces the banner to be shown
func (m *Manager) ShowBanner() {
	m.presenter.ShowBanner(m.timings.BannerDelay)
	m.state = StateBannerVisible
}

// AcceptAll allows every category
func (m *Manager) AcceptAll(ctx context.Context) domain.Record {
	return m.decide(ctx, domain.StatusAccepted, domain.Preferences{Analytics: true, Marketing: true})
}

// DeclineAll denies every optional category
func (m *Manager) DeclineAll(ctx context.Context) domain.Record {
	return m.decide(ctx, domain.StatusDeclined, domain.Preferences{})
}

// OpenSettings opens the settings dialog pre-populated from the stored record,
// or with all optional categories off. Allowed from any state.
func (m *Manager) OpenSettings(ctx context.Context) {
	prefs := domain.Preferences{}.Normalize()
	if rec, ok := m.store.Read(ctx); ok {
		prefs = rec.Preferences
	}
	m.presenter.OpenSettings(prefs)
	m.state = StateSettingsOpen
}

// CancelSettings closes the settings dialog without saving anything
func (m *Manager) CancelSettings(ctx context.Context) {
	if m.state != StateSettingsOpen {
		return
	}
	m.presenter.CloseSettings()
	if _, ok := m.store.Read(ctx); ok {
		m.state = StateDecided
		return
	}
	m.state = StateBannerVisible
}

// SaveSettings stores preferences chosen in the settings dialog
func (m *Manager) SaveSettings(ctx context.Context, analytics, marketing bool) domain.Record {
	prefs := domain.Preferences{Analytics: analytics, Marketing: marketing}.Normalize()
	rec := domain.NewRecord(domain.StatusFor(prefs), prefs, m.now())
	m.store.Write(ctx, rec)
	m.apply(rec)
	m.presenter.CloseSettings()
	m.presenter.HideBanner()
	m.state = StateDecided
	m.presenter.ShowNotice(SavedNotice, m.timings.NoticeTTL)
	m.showFloatingLink(m.timings.FloatingLinkDelay)
	return rec
}

// AcceptAllSettings is the "Accept All" button of the settings dialog
func (m *Manager) AcceptAllSettings(ctx context.Context) domain.Record {
	return m.SaveSettings(ctx, true, true)
}

// DeclineAllSettings is the "Decline All" button of the settings dialog
func (m *Manager) DeclineAllSettings(ctx context.Context) domain.Record {
	return m.SaveSettings(ctx, false, false)
}

// Current returns the stored record
func (m *Manager) Current(ctx context.Context) (domain.Record, bool) {
	return m.store.Read(ctx)
}

// Summary returns a read-only projection of the stored record
func (m *Manager) Summary(ctx context.Context) domain.Summary {
	rec, ok := m.store.Read(ctx)
	if !ok {
		return domain.Summarize(nil, m.now(), m.store.opts.Retention)
	}
	return domain.Summarize(&rec, m.now(), m.store.opts.Retention)
}

// IsAllowed reports whether the category is allowed by the stored record
func (m *Manager) IsAllowed(ctx context.Context, c domain.Category) bool {
	rec, ok := m.store.Read(ctx)
	if !ok {
		return false
	}
	return rec.Preferences.Allowed(c)
}

// UpdatePreferences merges patch into the stored preferences and rewrites the whole
// record with a fresh timestamp. Status is kept. Returns false if there is no record.
func (m *Manager) UpdatePreferences(ctx context.Context, patch map[domain.Category]bool) (domain.Record, bool) {
	rec, ok := m.store.Read(ctx)
	if !ok {
		return domain.Record{}, false
	}
	rec.Preferences = rec.Preferences.Merge(patch)
	rec.Timestamp = m.now().UnixMilli()
	m.store.Write(ctx, rec)
	m.apply(rec)
	return rec, true
}

// Reset clears stored consent and shows the banner again
func (m *Manager) Reset(ctx context.Context) {
	m.store.Clear(ctx)
	m.state = StateNoConsent
	lgr.Printf("[DEBUG] consent reset for profile %q", m.profileID)
	m.ShowBanner()
}

func (m *Manager) decide(ctx context.Context, status domain.Status, prefs domain.Preferences) domain.Record {
	rec := domain.NewRecord(status, prefs, m.now())
	m.store.Write(ctx, rec)
	m.presenter.HideBanner()
	m.apply(rec)
	m.state = StateDecided
	m.showFloatingLink(m.timings.FloatingLinkDelay)
	return rec
}

func (m *Manager) apply(rec domain.Record) {
	m.applier.Apply(rec)
	m.publisher.Publish(domain.EventFor(m.profileID, rec))
}

func (m *Manager) showFloatingLink(delay time.Duration) {
	if m.floatingLink {
		return
	}
	m.floatingLink = true
	m.presenter.ShowFloatingLink(delay)
}

type nopPresenter struct{}

func (nopPresenter) ShowBanner(time.Duration)         {}
func (nopPresenter) HideBanner()                      {}
func (nopPresenter) OpenSettings(domain.Preferences)  {}
func (nopPresenter) CloseSettings()                   {}
func (nopPresenter) ShowNotice(string, time.Duration) {}
func (nopPresenter) ShowFloatingLink(time.Duration)   {}
