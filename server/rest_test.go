package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/consentd/pkg/consent"
	"github.com/umputun/consentd/pkg/domain"
)

func (e *testEnv) doJSON(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "echai-profile", Value: testProfile})
	w := httptest.NewRecorder()
	e.srv.router.ServeHTTP(w, req)
	return w
}

func TestServer_statusHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/status", http.NoBody)
	w := httptest.NewRecorder()
	env.srv.statusHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var status map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "test", status["version"])
	assert.Equal(t, "memory", status["storage"])
	assert.NotEmpty(t, status["time"])
}

func TestServer_getConsentHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.doJSON(t, "GET", "/api/v1/consent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no consent recorded")

	env.do(t, "POST", "/consent/decline", nil)
	w = env.doJSON(t, "GET", "/api/v1/consent", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "declined", rec["status"])
	assert.NotZero(t, rec["timestamp"])
	assert.Equal(t, map[string]any{"essential": true, "analytics": false, "marketing": false}, rec["preferences"])
}

func TestServer_summaryHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.doJSON(t, "GET", "/api/v1/consent/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, false, summary["hasConsent"])
	assert.Equal(t, "no-consent", summary["status"])
	assert.Nil(t, summary["lastUpdated"])
	assert.Nil(t, summary["preferences"])

	env.do(t, "POST", "/consent/accept", nil)
	w = env.doJSON(t, "GET", "/api/v1/consent/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary = map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, true, summary["hasConsent"])
	assert.Equal(t, "accepted", summary["status"])
	assert.NotEmpty(t, summary["lastUpdated"])
	assert.InDelta(t, 365, summary["daysUntilExpiry"], 0)
}

func TestServer_allowedHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	allowed := func(category string) (int, map[string]any) {
		w := env.doJSON(t, "GET", "/api/v1/consent/allowed/"+category, "")
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w.Code, resp
	}

	code, resp := allowed("analytics")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["allowed"])

	code, resp = allowed("essential")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["allowed"], "nothing is allowed without a record")

	code, resp = allowed("tracking")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp["error"], "unknown cookie category")

	env.do(t, "POST", "/consent/settings", map[string][]string{"analytics": {"on"}})
	_, resp = allowed("analytics")
	assert.Equal(t, true, resp["allowed"])
	assert.Equal(t, "analytics", resp["category"])
	_, resp = allowed("marketing")
	assert.Equal(t, false, resp["allowed"])
	_, resp = allowed("essential")
	assert.Equal(t, true, resp["allowed"])
}

func TestServer_updatePreferencesHandler(t *testing.T) {
	t.Run("no record", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.doJSON(t, "PATCH", "/api/v1/consent/preferences", `{"analytics": true}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		_, ok := env.stored(t)
		assert.False(t, ok)
	})

	t.Run("invalid body", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.doJSON(t, "PATCH", "/api/v1/consent/preferences", `{"analytics": "yes"`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.do(t, "POST", "/consent/decline", nil)
		w := env.doJSON(t, "PATCH", "/api/v1/consent/preferences", `{"social": true}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("merge keeps status", func(t *testing.T) {
		var events []domain.Event
		env := newTestEnv(t, consent.PublisherFunc(func(e domain.Event) { events = append(events, e) }))
		env.do(t, "POST", "/consent/decline", nil)
		before := storedRecord(t, env)

		w := env.doJSON(t, "PATCH", "/api/v1/consent/preferences", `{"analytics": true, "essential": false}`)
		require.Equal(t, http.StatusOK, w.Code)

		rec := storedRecord(t, env)
		assert.Equal(t, domain.StatusDeclined, rec.Status)
		assert.Equal(t, domain.Preferences{Essential: true, Analytics: true}, rec.Preferences)
		assert.GreaterOrEqual(t, rec.Timestamp, before.Timestamp)
		require.Len(t, events, 2)
		assert.True(t, events[1].Preferences.Analytics)
	})
}

func TestServer_resetConsentHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "POST", "/consent/accept", nil)

	w := env.doJSON(t, "DELETE", "/api/v1/consent", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := env.stored(t)
	assert.False(t, ok)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "no-consent", summary["status"])
}

func TestRenderError(t *testing.T) {
	w := httptest.NewRecorder()
	renderError(w, httptest.NewRequest("GET", "/", http.NoBody), nil, http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.JSONEq(t, `{"error":"unknown error"}`, w.Body.String())
}
