package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/i18n"
	"github.com/diewo77/go-quotes/internal/handlers"
	"github.com/diewo77/go-quotes/internal/logger"
	"github.com/diewo77/go-quotes/internal/metrics"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// AppDeps are the collaborators the HTTP application is built from.
type AppDeps struct {
	DB       *gorm.DB
	Sessions *auth.Sessions
	Gate     *policy.AuthGate
	Services services.Deps
	Gatherer prometheus.Gatherer
	Dev      bool
}

// App is the main application handler that sets up all routes.
type App struct {
	mux      *http.ServeMux
	handler  http.Handler
	db       *gorm.DB
	sessions *auth.Sessions
	gate     *policy.AuthGate
	metrics  *metrics.Metrics
	log      zerolog.Logger

	quotes   *handlers.QuoteHandler
	public   *handlers.PublicHandler
	auth     *handlers.AuthHandler
	profiles *handlers.AdminProfileHandler
	users    *handlers.AdminUserProfileHandler
	identity func(http.Handler) http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(d AppDeps) *App {
	log := d.Services.Logger
	a := &App{
		mux:      http.NewServeMux(),
		db:       d.DB,
		sessions: d.Sessions,
		gate:     d.Gate,
		metrics:  d.Services.Metrics,
		log:      log,
		quotes:   handlers.NewQuoteHandler(services.NewQuoteService(d.Services), log),
		public: handlers.NewPublicHandler(services.NewApprovalGateway(d.Services),
			handlers.NewPageRenderer(d.Dev), d.Services.Site, log),
		auth:     handlers.NewAuthHandler(d.DB, d.Sessions, d.Gate, log),
		profiles: handlers.NewAdminProfileHandler(d.DB, d.Gate),
		users:    handlers.NewAdminUserProfileHandler(d.DB, d.Gate),
		identity: handlers.Identity(policy.NewDBProfileResolver(d.DB), log),
	}
	a.setupRoutes(d.Gatherer)

	// Access log sees the final status; sessions and language run before routing.
	a.handler = a.accessLog(a.sessions.Middleware(withPreferences(d.Services.Site.Lang, a.mux)))
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes(gatherer prometheus.Gatherer) {
	// Operations
	a.mux.HandleFunc("GET /healthz", a.healthz)
	if gatherer != nil {
		a.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Staff session
	a.mux.HandleFunc("POST /api/login", a.auth.Login)
	a.mux.HandleFunc("POST /api/logout", a.auth.Logout)
	a.mux.Handle("GET /api/me", a.staff(a.auth.Me))

	// Quotes. Permissions are checked by the services per action.
	qh := a.quotes
	a.mux.Handle("GET /api/quotes", a.staff(qh.List))
	a.mux.Handle("POST /api/quotes", a.staff(qh.Create))
	a.mux.Handle("GET /api/quotes/{id}", a.staff(qh.View))
	a.mux.Handle("PATCH /api/quotes/{id}", a.staff(qh.Update))
	a.mux.Handle("DELETE /api/quotes/{id}", a.staff(qh.Delete))
	a.mux.Handle("POST /api/quotes/{id}/send", a.staff(qh.Send))
	a.mux.Handle("POST /api/quotes/{id}/archive", a.staff(qh.Archive))
	a.mux.Handle("GET /api/quotes/{id}/audit", a.staff(qh.Audit))

	// Artwork
	a.mux.Handle("POST /api/quotes/{id}/artwork", a.staff(qh.UploadArtwork))
	a.mux.Handle("POST /api/quotes/{id}/artwork/send", a.staff(qh.SendArtwork))
	a.mux.Handle("DELETE /api/quotes/{id}/artwork", a.staff(qh.RemoveArtwork))
	a.mux.Handle("GET /api/quotes/{id}/artwork/versions", a.staff(qh.ArtworkVersions))

	// Profile administration
	a.mux.Handle("GET /api/admin/profiles", a.superAdmin(a.profiles.List))
	a.mux.Handle("POST /api/admin/profiles", a.superAdmin(a.profiles.Create))
	a.mux.Handle("PATCH /api/admin/profiles/{id}", a.superAdmin(a.profiles.Update))
	a.mux.Handle("DELETE /api/admin/profiles/{id}", a.superAdmin(a.profiles.Delete))
	a.mux.Handle("PUT /api/admin/profiles/{id}/permissions", a.superAdmin(a.profiles.SavePermissions))
	a.mux.Handle("GET /api/admin/permissions", a.superAdmin(a.profiles.ListPermissions))
	a.mux.Handle("GET /api/admin/users", a.superAdmin(a.users.List))
	a.mux.Handle("POST /api/admin/users/{id}/profile", a.superAdmin(a.users.AssignProfile))

	// Customer links (token gated, no session)
	ph := a.public
	a.mux.HandleFunc("GET /q/{token}", ph.ViewQuote)
	a.mux.HandleFunc("POST /q/{token}/approve", ph.ApproveQuote)
	a.mux.HandleFunc("POST /q/{token}/decline", ph.DeclineQuote)
	a.mux.HandleFunc("GET /artwork/{token}", ph.ViewArtwork)
	a.mux.HandleFunc("POST /artwork/{token}/approve", ph.ApproveArtwork)
	a.mux.HandleFunc("POST /artwork/{token}/decline", ph.DeclineArtwork)
	a.mux.HandleFunc("POST /artwork/{token}/approve-quote", ph.ApproveQuoteFromArtwork)
}

// staff requires a signed-in user and loads the actor for the services.
func (a *App) staff(h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.identity(h))
}

func (a *App) superAdmin(h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.identity(handlers.RequireSuperAdmin(a.gate)(h)))
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		a.log.Error().Err(err).Msg("health check: database unreachable")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// accessLog logs each request and feeds the request metrics. Customer tokens
// are shortened before they reach the log.
func (a *App) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		a.metrics.ObserveRequest(r.Method, rec.status, elapsed)
		ev := a.log.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = a.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", redactPath(r.URL.Path)).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request")
	})
}

var tokenRoutes = []string{"/q/", "/artwork/"}

// redactPath keeps only the prefix of the token segment of customer links.
func redactPath(path string) string {
	for _, prefix := range tokenRoutes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		token, tail, found := strings.Cut(rest, "/")
		if found {
			tail = "/" + tail
		}
		return prefix + logger.TokenPrefix(token) + "*" + tail
	}
	return path
}

const langCookie = "lang"

// withPreferences picks the request language: query, then cookie, then the
// browser's Accept-Language, then the shop default.
func withPreferences(siteLang string, next http.Handler) http.Handler {
	if !i18n.Supported(siteLang) {
		siteLang = i18n.DefaultLang
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var lang string
		if q := r.URL.Query().Get("lang"); i18n.Supported(q) {
			lang = q
			http.SetCookie(w, &http.Cookie{
				Name:     langCookie,
				Value:    lang,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		} else if c, err := r.Cookie(langCookie); err == nil && i18n.Supported(c.Value) {
			lang = c.Value
		} else if al := r.Header.Get("Accept-Language"); al != "" {
			lang = i18n.DetectLanguage(al)
		} else {
			lang = siteLang
		}
		next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
	})
}
