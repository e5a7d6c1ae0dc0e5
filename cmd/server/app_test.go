package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/i18n"
	"github.com/diewo77/go-quotes/internal/config"
	"github.com/diewo77/go-quotes/internal/db"
	"github.com/diewo77/go-quotes/internal/metrics"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "app.db")}, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(conn); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reg := prometheus.NewRegistry()
	gate := policy.NewAuthGate(conn, time.Minute)
	return NewApp(AppDeps{
		DB:       conn,
		Sessions: auth.NewSessions("app-test", time.Hour),
		Gate:     gate,
		Services: services.Deps{
			Store:    store.New(conn, time.Now),
			Gate:     gate,
			Activity: notify.NewActivityStore(conn, zerolog.Nop()),
			Metrics:  metrics.New(reg),
			Logger:   zerolog.Nop(),
			BaseURL:  "http://localhost:8080",
			Site:     notify.Site{Name: "PrintCo", Lang: "fr"},
		},
		Gatherer: reg,
	})
}

func TestAppRoutes(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		method, path string
		status       int
		contains     string
	}{
		{http.MethodGet, "/healthz", http.StatusOK, `"ok"`},
		{http.MethodGet, "/api/quotes", http.StatusUnauthorized, "unauthorized"},
		{http.MethodGet, "/api/admin/profiles", http.StatusUnauthorized, "unauthorized"},
		{http.MethodGet, "/q/unknown-token", http.StatusNotFound, "TOKEN_NOT_FOUND"},
		{http.MethodPost, "/artwork/unknown-token/approve", http.StatusNotFound, "TOKEN_NOT_FOUND"},
		{http.MethodGet, "/nowhere", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			r.Header.Set("Accept", "application/json")
			rr := httptest.NewRecorder()
			app.ServeHTTP(rr, r)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d; body: %s", rr.Code, tt.status, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", rr.Body.String(), tt.contains)
			}
		})
	}

	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "quotes_http_requests_total") {
		t.Errorf("metrics endpoint: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRedactPath(t *testing.T) {
	tests := map[string]string{
		"/q/abcdefghijklmnop":                      "/q/abcdefgh*",
		"/q/abcdefghijklmnop/approve":              "/q/abcdefgh*/approve",
		"/artwork/abcdefghijklmnop/approve-quote":  "/artwork/abcdefgh*/approve-quote",
		"/api/quotes/7d9f0c2e-7a3b-4a51-9f7e-0000": "/api/quotes/7d9f0c2e-7a3b-4a51-9f7e-0000",
		"/q/":                                      "/q/",
	}
	for in, want := range tests {
		if got := redactPath(in); got != want {
			t.Errorf("redactPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithPreferences(t *testing.T) {
	var got string
	h := withPreferences("en", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = i18n.LangFrom(r.Context())
	}))

	tests := []struct {
		name   string
		query  string
		cookie string
		accept string
		want   string
	}{
		{"site default", "", "", "", "en"},
		{"browser", "", "", "fr-FR,fr;q=0.9", "fr"},
		{"cookie beats browser", "", "en", "fr-FR", "en"},
		{"query beats cookie", "?lang=fr", "en", "", "fr"},
		{"unsupported query ignored", "?lang=de", "", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/q/x"+tt.query, nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: langCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)
			if got != tt.want {
				t.Errorf("lang = %q, want %q", got, tt.want)
			}
			if tt.query == "?lang=fr" && len(rr.Result().Cookies()) != 1 {
				t.Error("language choice not remembered")
			}
		})
	}
}
