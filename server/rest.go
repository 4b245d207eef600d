package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/umputun/consentd/pkg/consent"
	"github.com/umputun/consentd/pkg/domain"
)

var errNoConsent = errors.New("no consent recorded")

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"storage": s.config.GetStorageConfig().Primary,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// getConsentHandler returns the stored record of the visitor
func (s *Server) getConsentHandler(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.session(w, r, consent.StateNoConsent)
	rec, ok := mgr.Current(r.Context())
	if !ok {
		renderError(w, r, errNoConsent, http.StatusNotFound)
		return
	}
	renderJSON(w, r, http.StatusOK, rec)
}

// summaryHandler returns the consent summary, with status no-consent if nothing is stored
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.session(w, r, consent.StateNoConsent)
	renderJSON(w, r, http.StatusOK, mgr.Summary(r.Context()))
}

// allowedHandler reports whether a cookie category is allowed
func (s *Server) allowedHandler(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(r.PathValue("category"))
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}
	mgr, _ := s.session(w, r, consent.StateNoConsent)
	renderJSON(w, r, http.StatusOK, map[string]any{
		"category": category,
		"allowed":  mgr.IsAllowed(r.Context(), category),
	})
}

// updatePreferencesHandler merges a partial preferences object into the stored record.
// Body is a json object like {"analytics": true}. Status of the record is kept.
func (s *Server) updatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	patch := make(map[domain.Category]bool, len(body))
	for k, v := range body {
		category, err := domain.ParseCategory(k)
		if err != nil {
			renderError(w, r, err, http.StatusBadRequest)
			return
		}
		patch[category] = v
	}

	mgr, _ := s.session(w, r, consent.StateDecided)
	rec, ok := mgr.UpdatePreferences(r.Context(), patch)
	if !ok {
		renderError(w, r, errNoConsent, http.StatusNotFound)
		return
	}
	renderJSON(w, r, http.StatusOK, rec)
}

// resetConsentHandler clears the visitor's consent
func (s *Server) resetConsentHandler(w http.ResponseWriter, r *http.Request) {
	mgr, _ := s.session(w, r, consent.StateDecided)
	mgr.Reset(r.Context())
	renderJSON(w, r, http.StatusOK, mgr.Summary(r.Context()))
}
