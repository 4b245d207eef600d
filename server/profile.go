package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/umputun/consentd/pkg/consent"
)

type profileKey struct{}

// profileMiddleware makes sure every visitor has a profile id cookie and puts
// the id into the request context
func (s *Server) profileMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieCfg := s.config.GetCookieConfig()
		id := ""
		if c, err := r.Cookie(cookieCfg.ProfileCookie); err == nil {
			if parsed, perr := uuid.Parse(c.Value); perr == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			retention := s.config.GetConsentConfig().Retention
			http.SetCookie(w, &http.Cookie{
				Name:     cookieCfg.ProfileCookie,
				Value:    id,
				Path:     cookieCfg.Path,
				MaxAge:   int(retention.Seconds()),
				Secure:   cookieCfg.Secure,
				HttpOnly: true,
				SameSite: sameSite(cookieCfg.SameSite),
			})
			lgr.Printf("[DEBUG] new profile %s", id)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileKey{}, id)))
	})
}

// profileID returns the visitor profile id set by profileMiddleware
func profileID(r *http.Request) string {
	id, _ := r.Context().Value(profileKey{}).(string)
	return id
}

// session assembles a consent manager for the current request. The primary
// backend is the profile store, the fallback is the consent cookie itself.
// Changes are published to the page and to the server publisher.
func (s *Server) session(w http.ResponseWriter, r *http.Request, state consent.State) (*consent.Manager, *view) {
	return s.buildSession(w, r, state, s.publisher)
}

// pageSession is a session for page loads. Re-applying a stored decision is not
// a change, so its event reaches only the in-page listeners.
func (s *Server) pageSession(w http.ResponseWriter, r *http.Request) (*consent.Manager, *view) {
	return s.buildSession(w, r, consent.StateNoConsent, nil)
}

func (s *Server) buildSession(w http.ResponseWriter, r *http.Request, state consent.State,
	publisher consent.Publisher) (*consent.Manager, *view) {
	cookieCfg := s.config.GetCookieConfig()
	consentCfg := s.config.GetConsentConfig()
	storageCfg := s.config.GetStorageConfig()
	pid := profileID(r)

	var primary consent.Backend
	if s.profiles != nil && pid != "" {
		primary = s.profiles.ForProfile(pid)
	}
	jar := consent.NewCookieJar(w, r, consent.CookieOpts{
		Path:     cookieCfg.Path,
		Secure:   cookieCfg.Secure,
		SameSite: sameSite(cookieCfg.SameSite),
	})
	store := consent.NewStore(primary, jar, consent.StoreOpts{
		Key:            storageCfg.Key,
		Retention:      consentCfg.Retention,
		MirrorFallback: storageCfg.MirrorFallback,
		MigrateLegacy:  storageCfg.MigrateLegacy,
	})

	v := &view{}
	mgr := consent.NewManager(consent.ManagerOpts{
		Store:     store,
		Applier:   consent.NewApplier(v.integrations()...),
		Publisher: consent.Publishers{v, publisher},
		Presenter: v,
		Timings: consent.Timings{
			BannerDelay:       consentCfg.BannerDelay,
			FloatingLinkDelay: consentCfg.FloatingLinkDelay,
			NoticeTTL:         consentCfg.NoticeTTL,
		},
		ProfileID: pid,
		State:     state,
	})
	return mgr, v
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
