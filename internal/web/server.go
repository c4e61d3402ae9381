// Package web provides the HTTP server of the distributor registration
// wizard: the HTML flow under /registro, the JSON API under /api, and the
// lookup endpoints the pages use.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/registro/internal/config"
	"github.com/JonMunkholm/registro/internal/gqlupload"
	"github.com/JonMunkholm/registro/internal/web/middleware"
	"github.com/JonMunkholm/registro/internal/web/views"
	"github.com/JonMunkholm/registro/internal/wizard"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP server of the registration wizard.
type Server struct {
	cfg     *config.Config
	store   *wizard.Store
	limiter *gqlupload.Limiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server for the sessions in store. limiter is the one
// bounding outbound submissions; it is only read for the health report and
// may be nil.
func NewServer(cfg *config.Config, store *wizard.Store, limiter *gqlupload.Limiter) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		limiter: limiter,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).Middleware)
	}
}

// submitLimit guards the routes that carry files or reach the backend.
func (s *Server) submitLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.NewRateLimiter(s.cfg.Rate.SubmitLimit, time.Minute).Middleware
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, views.BasePath, http.StatusFound)
	})

	heavy := s.submitLimit()

	// HTML flow; the session travels in a cookie.
	s.router.Route(views.BasePath, func(r chi.Router) {
		r.Get("/", s.handleWizardPage)
		r.Post("/nuevo", s.handleWizardRestart)
		r.Post("/cancelar", s.handleWizardCancel)
		r.Post("/siguiente", s.handleWizardNext)
		r.Post("/anterior", s.handleWizardBack)
		r.Post("/paso/{index}", s.handleWizardGoTo)
		r.Post("/departamento", s.handleWizardDepartment)
		r.Post("/referencias", s.handleWizardAddReference)
		r.Post("/referencias/{index}/eliminar", s.handleWizardRemoveReference)
		r.With(heavy).Post("/documentos/{docType}", s.handleWizardStageDocument)
		r.Post("/documentos/{docType}/quitar", s.handleWizardClearDocument)
		r.Post("/descartar-error", s.handleWizardDismissError)
		r.With(heavy).Post("/enviar", s.handleWizardFinalize)
		r.Get("/vista-previa/{previewID}", s.handleWizardPreview)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Reference data
		r.Get("/documentos", s.handleListDocumentTypes)
		r.Get("/ubicaciones", s.handleListDepartments)
		r.Get("/ubicaciones/{departamento}", s.handleListMunicipalities)

		// Registration sessions
		r.Post("/registro", s.handleAPICreate)
		r.Route("/registro/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleAPIView)
			r.Delete("/", s.handleAPIClose)
			r.Patch("/campos", s.handleAPISetFields)
			r.Post("/siguiente", s.handleAPINext)
			r.Post("/anterior", s.handleAPIBack)
			r.Post("/paso/{index}", s.handleAPIGoTo)
			r.Post("/referencias", s.handleAPIAddReference)
			r.Delete("/referencias/{index}", s.handleAPIRemoveReference)
			r.With(heavy).Put("/documentos/{docType}", s.handleAPIStageDocument)
			r.Delete("/documentos/{docType}", s.handleAPIClearDocument)
			r.With(heavy).Post("/enviar", s.handleAPIFinalize)
			r.Get("/vista-previa/{previewID}", s.handleAPIPreview)
		})
	})
}

// Start begins listening for HTTP requests on the configured address. It
// returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses. Preview images
// are served from the same origin, so img-src stays 'self'. Inline script
// is limited to the department selector's change handler.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self'; img-src 'self'; form-action 'self'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
