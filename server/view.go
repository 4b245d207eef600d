package server

import (
	"html/template"
	"io"
	"time"

	"github.com/umputun/consentd/pkg/consent"
	"github.com/umputun/consentd/pkg/domain"
)

// gtag consent signals, names follow google consent mode
const (
	gtagAnalyticsStorage = "analytics_storage"
	gtagAdStorage        = "ad_storage"
)

// view collects presenter calls made by the consent manager during one request
// and renders them as htmx fragments. It also receives applier toggles and
// published events, so the response carries the matching client-side scripts.
type view struct {
	banner       slot[bool]
	settings     slot[*domain.Preferences]
	notice       slot[string]
	floatingLink slot[bool]

	bannerDelay       time.Duration
	noticeTTL         time.Duration
	floatingLinkDelay time.Duration

	gtag   []map[string]string
	chat   []bool
	events []domain.Event
}

// slot is a part of the widget with a flag telling whether the manager touched it
type slot[T any] struct {
	value   T
	changed bool
}

func (s *slot[T]) set(v T) {
	s.value = v
	s.changed = true
}

// ShowBanner implements consent.Presenter
func (v *view) ShowBanner(delay time.Duration) {
	v.banner.set(true)
	v.bannerDelay = delay
}

// HideBanner implements consent.Presenter
func (v *view) HideBanner() { v.banner.set(false) }

// OpenSettings implements consent.Presenter
func (v *view) OpenSettings(prefs domain.Preferences) { v.settings.set(&prefs) }

// CloseSettings implements consent.Presenter
func (v *view) CloseSettings() { v.settings.set(nil) }

// ShowNotice implements consent.Presenter
func (v *view) ShowNotice(message string, ttl time.Duration) {
	v.notice.set(message)
	v.noticeTTL = ttl
}

// ShowFloatingLink implements consent.Presenter
func (v *view) ShowFloatingLink(delay time.Duration) {
	v.floatingLink.set(true)
	v.floatingLinkDelay = delay
}

// Publish implements consent.Publisher, events are dispatched in the browser
// as cookieConsentChanged
func (v *view) Publish(e domain.Event) {
	e.ProfileID = "" // not exposed to page scripts
	v.events = append(v.events, e)
}

// integrations returns the client-side tags controlled by consent. Toggles are
// rendered as scripts which check the tag is loaded before calling it.
func (v *view) integrations() []consent.Integration {
	gtagSignal := func(signal string) func() consent.Toggler {
		return func() consent.Toggler {
			return consent.TogglerFunc(func(enabled bool) {
				v.gtag = append(v.gtag, map[string]string{signal: grant(enabled)})
			})
		}
	}
	return []consent.Integration{
		{Name: "gtag-analytics", Category: domain.CategoryAnalytics, Lookup: gtagSignal(gtagAnalyticsStorage)},
		{Name: "gtag-ads", Category: domain.CategoryMarketing, Lookup: gtagSignal(gtagAdStorage)},
		{Name: "chat-tracking", Category: domain.CategoryMarketing, Lookup: func() consent.Toggler {
			return consent.TogglerFunc(func(enabled bool) { v.chat = append(v.chat, enabled) })
		}},
	}
}

func grant(enabled bool) string {
	if enabled {
		return "granted"
	}
	return "denied"
}

// widgetData is passed to the consent templates
type widgetData struct {
	OOB   bool
	State string

	Banner     bool
	BannerText template.HTML
	PrivacyURL string
	BannerMS   int64

	Settings *domain.Preferences

	Notice   string
	NoticeMS int64

	FloatingLink   bool
	FloatingLinkMS int64

	Gtag   []map[string]string
	Chat   []bool
	Events []domain.Event
}

func (v *view) data(state consent.State, copyText template.HTML, privacyURL string) widgetData {
	return widgetData{
		State:          state.String(),
		Banner:         v.banner.value,
		BannerText:     copyText,
		PrivacyURL:     privacyURL,
		BannerMS:       v.bannerDelay.Milliseconds(),
		Settings:       v.settings.value,
		Notice:         v.notice.value,
		NoticeMS:       v.noticeTTL.Milliseconds(),
		FloatingLink:   v.floatingLink.value,
		FloatingLinkMS: v.floatingLinkDelay.Milliseconds(),
		Gtag:           v.gtag,
		Chat:           v.chat,
		Events:         v.events,
	}
}

// HasScripts reports whether anything must run in the browser
func (d widgetData) HasScripts() bool {
	return len(d.Gtag) > 0 || len(d.Chat) > 0 || len(d.Events) > 0
}

// renderUpdates writes out-of-band swaps for every part the manager changed
func (v *view) renderUpdates(w io.Writer, tmpl *template.Template, d widgetData) error {
	d.OOB = true
	parts := []struct {
		name    string
		changed bool
	}{
		{name: "banner", changed: v.banner.changed},
		{name: "settings", changed: v.settings.changed},
		{name: "notice", changed: v.notice.changed},
		{name: "floating-link", changed: v.floatingLink.changed},
		{name: "consent-script", changed: true},
	}
	for _, p := range parts {
		if !p.changed {
			continue
		}
		if err := tmpl.ExecuteTemplate(w, p.name, d); err != nil {
			return err
		}
	}
	return nil
}
