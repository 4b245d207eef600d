package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/consentd/pkg/consent"
	"github.com/umputun/consentd/pkg/domain"
	"github.com/umputun/consentd/server/mocks"
)

func storedRecord(t *testing.T, env *testEnv) domain.Record {
	t.Helper()
	raw, ok := env.stored(t)
	require.True(t, ok, "no record stored")
	var rec domain.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func TestServer_widgetHandler(t *testing.T) {
	t.Run("no consent shows banner", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, "GET", "/consent/widget", nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `id="cookie-consent"`)
		assert.Contains(t, body, "cookie-banner show")
		assert.Contains(t, body, "animation-delay: 100ms")
		assert.Contains(t, body, "We use <b>cookies</b>.")
		assert.NotContains(t, body, `alert(`)
		assert.Contains(t, body, `href="/privacy"`)
		assert.Contains(t, body, `data-consent-state="banner-visible"`)
		assert.NotContains(t, body, "hx-swap-oob")
		assert.NotContains(t, body, "cookieConsentChanged")
	})

	t.Run("stored consent is applied", func(t *testing.T) {
		var events []domain.Event
		env := newTestEnv(t, consent.PublisherFunc(func(e domain.Event) { events = append(events, e) }))
		env.do(t, "POST", "/consent/accept", nil)
		require.Len(t, events, 1)

		w := env.do(t, "GET", "/consent/widget", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.NotContains(t, body, "cookie-banner show")
		assert.Contains(t, body, "cookie-settings-link show")
		assert.Contains(t, body, "animation-delay: 0ms")
		assert.Contains(t, body, `"analytics_storage":"granted"`)
		assert.Contains(t, body, `"ad_storage":"granted"`)
		assert.Contains(t, body, "setTracking(true)")
		assert.Contains(t, body, "cookieConsentChanged")
		assert.Contains(t, body, `data-consent-state="decided"`)

		env.do(t, "GET", "/consent/widget", nil)
		assert.Len(t, events, 1, "page loads must not re-publish the stored decision")
	})
}

func TestServer_bannerHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/consent/banner", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="cookie-banner" hx-swap-oob="true"`)
	assert.Contains(t, body, "cookie-banner show")
	assert.NotContains(t, body, `id="cookie-settings"`)
}

func TestServer_acceptHandler(t *testing.T) {
	var events []domain.Event
	env := newTestEnv(t, consent.PublisherFunc(func(e domain.Event) { events = append(events, e) }))

	w := env.do(t, "POST", "/consent/accept", nil)
	require.Equal(t, http.StatusOK, w.Code)

	rec := storedRecord(t, env)
	assert.Equal(t, domain.StatusAccepted, rec.Status)
	assert.Equal(t, domain.Preferences{Essential: true, Analytics: true, Marketing: true}, rec.Preferences)
	assert.InDelta(t, time.Now().UnixMilli(), rec.Timestamp, 5000)

	body := w.Body.String()
	assert.Contains(t, body, `id="cookie-banner" hx-swap-oob="true"`)
	assert.NotContains(t, body, "cookie-banner show")
	assert.Contains(t, body, "cookie-settings-link show")
	assert.Contains(t, body, "animation-delay: 500ms")
	assert.Contains(t, body, `"analytics_storage":"granted"`)
	assert.Contains(t, body, "document.dispatchEvent(new CustomEvent('cookieConsentChanged'")
	assert.NotContains(t, body, "window.dispatchEvent")
	assert.NotContains(t, body, testProfile, "profile id must not leak into page scripts")
	assert.Contains(t, body, `data-consent-state="decided"`)

	require.Len(t, events, 1)
	assert.Equal(t, testProfile, events[0].ProfileID)
	assert.Equal(t, domain.StatusAccepted, events[0].Status)

	// primary write succeeded, fallback cookie is not written
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, consent.StorageKey, c.Name)
	}
}

func TestServer_declineHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "POST", "/consent/decline", nil)
	require.Equal(t, http.StatusOK, w.Code)

	rec := storedRecord(t, env)
	assert.Equal(t, domain.StatusDeclined, rec.Status)
	assert.Equal(t, domain.Preferences{Essential: true}, rec.Preferences)

	body := w.Body.String()
	assert.Contains(t, body, `"analytics_storage":"denied"`)
	assert.Contains(t, body, `"ad_storage":"denied"`)
	assert.Contains(t, body, "setTracking(false)")
}

func TestServer_openSettingsHandler(t *testing.T) {
	t.Run("defaults without consent", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, "GET", "/consent/settings", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Contains(t, body, `id="cookie-settings" hx-swap-oob="true"`)
		assert.Contains(t, body, "cookie-modal show")
		assert.Contains(t, body, `name="essential" checked disabled`)
		assert.NotContains(t, body, `name="analytics" checked`)
		assert.NotContains(t, body, `name="marketing" checked`)
		assert.Contains(t, body, `data-consent-state="settings-open"`)
		_, ok := env.stored(t)
		assert.False(t, ok, "opening settings must not persist anything")
	})

	t.Run("pre-populated from stored consent", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.do(t, "POST", "/consent/settings", url.Values{"action": {"save"}, "analytics": {"on"}})

		w := env.do(t, "GET", "/consent/settings", nil)
		body := w.Body.String()
		assert.Contains(t, body, `name="analytics" checked`)
		assert.NotContains(t, body, `name="marketing" checked`)
	})
}

func TestServer_saveSettingsHandler(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		status    domain.Status
		analytics bool
		marketing bool
	}{
		{name: "analytics only", form: url.Values{"action": {"save"}, "analytics": {"on"}},
			status: domain.StatusCustomized, analytics: true},
		{name: "nothing selected", form: url.Values{"action": {"save"}},
			status: domain.StatusEssentialOnly},
		{name: "default action is save", form: url.Values{"marketing": {"on"}},
			status: domain.StatusCustomized, marketing: true},
		{name: "essential field ignored", form: url.Values{"action": {"save"}, "essential": {"off"}},
			status: domain.StatusEssentialOnly},
		{name: "accept all", form: url.Values{"action": {"accept-all"}},
			status: domain.StatusCustomized, analytics: true, marketing: true},
		{name: "decline all", form: url.Values{"action": {"decline-all"}, "analytics": {"on"}},
			status: domain.StatusEssentialOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(t, "POST", "/consent/settings", tt.form)
			require.Equal(t, http.StatusOK, w.Code)

			rec := storedRecord(t, env)
			assert.Equal(t, tt.status, rec.Status)
			assert.True(t, rec.Preferences.Essential)
			assert.Equal(t, tt.analytics, rec.Preferences.Analytics)
			assert.Equal(t, tt.marketing, rec.Preferences.Marketing)

			body := w.Body.String()
			assert.Contains(t, body, consent.SavedNotice)
			assert.Contains(t, body, `data-ttl="3000"`)
			assert.Contains(t, body, `id="cookie-settings" hx-swap-oob="true"`)
			assert.NotContains(t, body, "cookie-modal show")
			assert.NotContains(t, body, "cookie-banner show")
			assert.Contains(t, body, "cookie-settings-link show")
		})
	}

	t.Run("invalid action", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, "POST", "/consent/settings", url.Values{"action": {"maybe"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		_, ok := env.stored(t)
		assert.False(t, ok)
	})
}

func TestServer_cancelSettingsHandler(t *testing.T) {
	t.Run("without consent returns to banner", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, "POST", "/consent/settings/cancel", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Contains(t, body, `id="cookie-settings" hx-swap-oob="true"`)
		assert.NotContains(t, body, "cookie-modal show")
		assert.Contains(t, body, `data-consent-state="banner-visible"`)
		_, ok := env.stored(t)
		assert.False(t, ok)
	})

	t.Run("with consent keeps the record", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.do(t, "POST", "/consent/decline", nil)
		before := storedRecord(t, env)

		w := env.do(t, "POST", "/consent/settings/cancel", nil)
		assert.Contains(t, w.Body.String(), `data-consent-state="decided"`)
		assert.Equal(t, before, storedRecord(t, env))
	})
}

func TestServer_resetHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "POST", "/consent/accept", nil)

	w := env.do(t, "POST", "/consent/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := env.stored(t)
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "cookie-banner show")
	assert.Contains(t, w.Body.String(), `data-consent-state="banner-visible"`)
}

type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk full")
}
func (brokenBackend) Set(context.Context, string, string, time.Duration) error {
	return errors.New("disk full")
}
func (brokenBackend) Delete(context.Context, string) error { return errors.New("disk full") }

func TestServer_fallbackCookie(t *testing.T) {
	store := &mocks.ProfileStoreMock{ForProfileFunc: func(string) consent.Backend { return brokenBackend{} }}
	env := &testEnv{srv: New(testConfig(":8080"), store, nil, "test", false), store: store}

	w := env.do(t, "POST", "/consent/accept", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fallback *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == consent.StorageKey {
			fallback = c
		}
	}
	require.NotNil(t, fallback, "fallback cookie expected when primary fails")
	assert.Equal(t, "accepted", fallback.Value)
	assert.Equal(t, "/", fallback.Path)
	assert.Equal(t, http.SameSiteLaxMode, fallback.SameSite)
	assert.True(t, fallback.Secure)
	assert.Equal(t, 365*24*3600, fallback.MaxAge)

	// next request reads the consent back from the cookie
	w = env.do(t, "GET", "/api/v1/consent", nil, fallback)
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, domain.StatusAccepted, rec.Status)
	assert.Equal(t, domain.Preferences{Essential: true, Analytics: true, Marketing: true}, rec.Preferences)
}

func TestFormBool(t *testing.T) {
	for _, v := range []string{"on", "true", "1", "yes"} {
		assert.True(t, formBool(v), v)
	}
	for _, v := range []string{"", "off", "false", "0"} {
		assert.False(t, formBool(v), v)
	}
}
