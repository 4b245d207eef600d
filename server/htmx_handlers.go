package server

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"github.com/umputun/consentd/pkg/consent"
)

// settings form actions
const (
	actionSave       = "save"
	actionAcceptAll  = "accept-all"
	actionDeclineAll = "decline-all"
)

// indexHandler renders a bare page hosting the consent widget
func (s *Server) indexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index", map[string]string{"Version": s.version}); err != nil {
		log.Printf("[ERROR] failed to render index: %v", err)
	}
}

// widgetHandler renders the whole widget on page load. Banner is shown when
// there is no valid consent, otherwise stored preferences are applied.
func (s *Server) widgetHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.pageSession(w, r)
	mgr.Init(r.Context())

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "widget", s.widgetData(v, mgr)); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Failed to render consent widget", err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// bannerHandler forces the banner to show
func (s *Server) bannerHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.session(w, r, consent.StateNoConsent)
	mgr.ShowBanner()
	s.renderUpdates(w, v, mgr)
}

// acceptHandler is the banner's "Accept All"
func (s *Server) acceptHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.session(w, r, consent.StateBannerVisible)
	mgr.AcceptAll(r.Context())
	s.renderUpdates(w, v, mgr)
}

// declineHandler is the banner's "Decline"
func (s *Server) declineHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.session(w, r, consent.StateBannerVisible)
	mgr.DeclineAll(r.Context())
	s.renderUpdates(w, v, mgr)
}

// openSettingsHandler opens the settings dialog, used by "Customize" and the floating link
func (s *Server) openSettingsHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.session(w, r, consent.StateBannerVisible)
	mgr.OpenSettings(r.Context())
	s.renderUpdates(w, v, mgr)
}

// saveSettingsHandler handles the three submit buttons of the settings dialog.
// Essential checkbox is ignored, it is always on.
func (s *Server) saveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, fmt.Errorf("invalid form data"), http.StatusBadRequest)
		return
	}

	action := r.FormValue("action")
	if action == "" {
		action = actionSave
	}

	mgr, v := s.session(w, r, consent.StateSettingsOpen)
	switch action {
	case actionSave:
		mgr.SaveSettings(r.Context(), formBool(r.FormValue("analytics")), formBool(r.FormValue("marketing")))
	case actionAcceptAll:
		mgr.AcceptAllSettings(r.Context())
	case actionDeclineAll:
		mgr.DeclineAllSettings(r.Context())
	default:
		renderError(w, r, fmt.Errorf("invalid action %q", action), http.StatusBadRequest)
		return
	}
	s.renderUpdates(w, v, mgr)
}

// cancelSettingsHandler closes the dialog without saving (close button, overlay, Escape)
func (s *Server) cancelSettingsHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.session(w, r, consent.StateSettingsOpen)
	mgr.CancelSettings(r.Context())
	s.renderUpdates(w, v, mgr)
}

// resetHandler clears consent and shows the banner again
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	mgr, v := s.session(w, r, consent.StateDecided)
	mgr.Reset(r.Context())
	s.renderUpdates(w, v, mgr)
}

// renderUpdates writes out-of-band fragments for the parts changed by the manager
func (s *Server) renderUpdates(w http.ResponseWriter, v *view, mgr *consent.Manager) {
	var buf bytes.Buffer
	if err := v.renderUpdates(&buf, s.templates, s.widgetData(v, mgr)); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Failed to render consent update", err)
		return
	}
	writeHTML(w, buf.Bytes())
}

func (s *Server) widgetData(v *view, mgr *consent.Manager) widgetData {
	return v.data(mgr.State(), s.bannerText, s.config.GetConsentConfig().PrivacyURL)
}

// respondWithError logs the error and sends a plain text response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	log.Printf("[ERROR] %s: %v", message, err)
	http.Error(w, message, code)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// formBool treats checkbox values and explicit booleans as true
func formBool(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}
