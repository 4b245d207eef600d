package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/consentd/pkg/config"
	"github.com/umputun/consentd/pkg/consent"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/profiles.go -pkg mocks -skip-ensure -fmt goimports . ProfileStore

//go:embed templates/*.html
var templatesFS embed.FS

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	profiles  ProfileStore
	publisher consent.Publisher
	version   string
	debug     bool

	templates  *template.Template
	bannerText template.HTML

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
	GetCookieConfig() config.CookieConfig
	GetConsentConfig() config.ConsentConfig
	GetStorageConfig() config.StorageConfig
}

// ProfileStore gives the primary consent backend of a visitor profile
type ProfileStore interface {
	ForProfile(profileID string) consent.Backend
}

// New initializes a new server instance. Publisher receives every consent change
// and can be nil.
func New(cfg ConfigProvider, profiles ProfileStore, publisher consent.Publisher, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		profiles:  profiles,
		publisher: publisher,
		version:   version,
		debug:     debug,
		templates: template.Must(template.ParseFS(templatesFS, "templates/*.html")),
		router:    routegroup.New(http.NewServeMux()),
	}

	// banner copy comes from config and may carry links or emphasis
	policy := bluemonday.UGCPolicy()
	s.bannerText = template.HTML(policy.Sanitize(cfg.GetConsentConfig().BannerText)) //nolint:gosec // sanitized above

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("consentd", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // consent payloads are tiny
	s.router.Use(s.profileMiddleware)
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	// API routes
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /consent", s.getConsentHandler)
		r.HandleFunc("GET /consent/summary", s.summaryHandler)
		r.HandleFunc("GET /consent/allowed/{category}", s.allowedHandler)
		r.HandleFunc("PATCH /consent/preferences", s.updatePreferencesHandler)
		r.HandleFunc("DELETE /consent", s.resetConsentHandler)
	})

	// htmx fragments of the consent widget
	s.router.Mount("/consent").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /widget", s.widgetHandler)
		r.HandleFunc("GET /banner", s.bannerHandler)
		r.HandleFunc("POST /accept", s.acceptHandler)
		r.HandleFunc("POST /decline", s.declineHandler)
		r.HandleFunc("GET /settings", s.openSettingsHandler)
		r.HandleFunc("POST /settings", s.saveSettingsHandler)
		r.HandleFunc("POST /settings/cancel", s.cancelSettingsHandler)
		r.HandleFunc("POST /reset", s.resetHandler)
	})

	s.router.HandleFunc("GET /{$}", s.indexHandler)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
