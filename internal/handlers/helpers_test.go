package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/internal/config"
	appdb "github.com/diewo77/go-quotes/internal/db"
	"github.com/diewo77/go-quotes/internal/metrics"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

const testPassword = "correct horse"

type stubMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (m *stubMailer) Send(_ context.Context, msg notify.Message) notify.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.fail {
		return notify.Result{Err: errors.New("relay down")}
	}
	return notify.Result{Success: true, MessageID: fmt.Sprintf("<m%d@printco.test>", len(m.sent))}
}

func (m *stubMailer) last(t *testing.T) notify.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email sent")
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	db       *gorm.DB
	gate     *policy.AuthGate
	sessions *auth.Sessions
	mailer   *stubMailer
	handler  http.Handler

	editor, admin, super *models.User

	mu    sync.Mutex
	clock time.Time
}

func (e *testEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = e.clock.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "handlers.db")}
	db, err := appdb.Open(cfg, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := appdb.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := appdb.Seed(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	e := &testEnv{
		db:       db,
		gate:     policy.NewAuthGate(db, time.Minute),
		sessions: auth.NewSessions("test-secret", time.Hour),
		mailer:   &stubMailer{},
		clock:    testNow,
	}
	e.editor = e.createUser(t, "eve@printco.test", "EDITOR")
	e.admin = e.createUser(t, "ada@printco.test", "ADMIN")
	e.super = e.createUser(t, "sam@printco.test", "SUPER_ADMIN")

	deps := services.Deps{
		Store:    store.New(db, e.now),
		Gate:     e.gate,
		Mailer:   e.mailer,
		Activity: notify.NewActivityStore(db, zerolog.Nop()),
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   zerolog.Nop(),
		BaseURL:  "https://shop.printco.test",
		Site:     notify.Site{Name: "PrintCo", ContactEmail: "hello@printco.test", Lang: "en"},
		Now:      e.now,
	}
	quotes := NewQuoteHandler(services.NewQuoteService(deps), zerolog.Nop())
	public := NewPublicHandler(services.NewApprovalGateway(deps), NewPageRenderer(false), deps.Site, zerolog.Nop())
	authH := NewAuthHandler(db, e.sessions, e.gate, zerolog.Nop())
	profiles := NewAdminProfileHandler(db, e.gate)
	users := NewAdminUserProfileHandler(db, e.gate)

	staff := func(h http.HandlerFunc) http.Handler {
		return e.sessions.RequireAuth(Identity(policy.NewDBProfileResolver(db), zerolog.Nop())(h))
	}
	superOnly := func(h http.HandlerFunc) http.Handler {
		return staff(RequireSuperAdmin(e.gate)(h).ServeHTTP)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", authH.Login)
	mux.HandleFunc("POST /api/logout", authH.Logout)
	mux.Handle("GET /api/me", staff(authH.Me))
	mux.Handle("GET /api/quotes", staff(quotes.List))
	mux.Handle("POST /api/quotes", staff(quotes.Create))
	mux.Handle("GET /api/quotes/{id}", staff(quotes.View))
	mux.Handle("PATCH /api/quotes/{id}", staff(quotes.Update))
	mux.Handle("DELETE /api/quotes/{id}", staff(quotes.Delete))
	mux.Handle("POST /api/quotes/{id}/send", staff(quotes.Send))
	mux.Handle("POST /api/quotes/{id}/archive", staff(quotes.Archive))
	mux.Handle("GET /api/quotes/{id}/audit", staff(quotes.Audit))
	mux.Handle("POST /api/quotes/{id}/artwork", staff(quotes.UploadArtwork))
	mux.Handle("POST /api/quotes/{id}/artwork/send", staff(quotes.SendArtwork))
	mux.Handle("DELETE /api/quotes/{id}/artwork", staff(quotes.RemoveArtwork))
	mux.Handle("GET /api/quotes/{id}/artwork/versions", staff(quotes.ArtworkVersions))
	mux.Handle("GET /api/admin/profiles", superOnly(profiles.List))
	mux.Handle("POST /api/admin/profiles", superOnly(profiles.Create))
	mux.Handle("PATCH /api/admin/profiles/{id}", superOnly(profiles.Update))
	mux.Handle("DELETE /api/admin/profiles/{id}", superOnly(profiles.Delete))
	mux.Handle("PUT /api/admin/profiles/{id}/permissions", superOnly(profiles.SavePermissions))
	mux.Handle("GET /api/admin/permissions", superOnly(profiles.ListPermissions))
	mux.Handle("GET /api/admin/users", superOnly(users.List))
	mux.Handle("POST /api/admin/users/{id}/profile", superOnly(users.AssignProfile))
	mux.HandleFunc("GET /q/{token}", public.ViewQuote)
	mux.HandleFunc("POST /q/{token}/approve", public.ApproveQuote)
	mux.HandleFunc("POST /q/{token}/decline", public.DeclineQuote)
	mux.HandleFunc("GET /artwork/{token}", public.ViewArtwork)
	mux.HandleFunc("POST /artwork/{token}/approve", public.ApproveArtwork)
	mux.HandleFunc("POST /artwork/{token}/decline", public.DeclineArtwork)
	mux.HandleFunc("POST /artwork/{token}/approve-quote", public.ApproveQuoteFromArtwork)
	e.handler = e.sessions.Middleware(mux)
	return e
}

func (e *testEnv) createUser(t *testing.T, email, profile string) *models.User {
	t.Helper()
	var p models.Profile
	if err := e.db.Where("name = ?", profile).First(&p).Error; err != nil {
		t.Fatalf("profile %s: %v", profile, err)
	}
	hash := "x"
	if profile == "ADMIN" {
		var err error
		if hash, err = HashPassword(testPassword); err != nil {
			t.Fatalf("hash: %v", err)
		}
	}
	u := &models.User{Email: email, Name: strings.Split(email, "@")[0], Password: hash, ProfileID: &p.ID}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// request describes one call against the test server.
type request struct {
	method string
	path   string
	body   any
	as     *models.User
	header map[string]string
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	if req.as != nil {
		rr := httptest.NewRecorder()
		e.sessions.Create(rr, req.as.ID)
		for _, c := range rr.Result().Cookies() {
			r.AddCookie(c)
		}
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, r)
	return rr
}

func decodeAs[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, status, rr.Body.String())
	}
}

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func flyerPayload() map[string]any {
	return map[string]any{
		"customer_name":  "Jane Roe",
		"customer_email": "jane@example.com",
		"title":          "Flyers",
		"internal_notes": "cost basis 4.10/unit",
		"discount_type":  "PERCENTAGE",
		"discount_value": "10",
		"tax_rate":       "8",
		"shipping":       "15",
		"items": []map[string]any{
			{"name": "Flyer A5", "quantity": 10, "unit_price": "12.00"},
		},
	}
}

func (e *testEnv) createQuote(t *testing.T, payload map[string]any) models.Quote {
	t.Helper()
	rr := e.do(t, request{method: http.MethodPost, path: "/api/quotes", body: payload, as: e.admin})
	wantStatus(t, rr, http.StatusCreated)
	return decodeAs[models.Quote](t, rr)
}

var linkToken = regexp.MustCompile(`https://shop\.printco\.test/(?:q|artwork)/([A-Za-z0-9_-]+)`)

// sendQuote sends q and returns the token of the emailed link.
func (e *testEnv) sendQuote(t *testing.T, q models.Quote) string {
	t.Helper()
	rr := e.do(t, request{method: http.MethodPost, path: "/api/quotes/" + q.ID.String() + "/send", as: e.admin})
	wantStatus(t, rr, http.StatusOK)
	return tokenIn(t, e.mailer.last(t).HTMLBody)
}

func tokenIn(t *testing.T, body string) string {
	t.Helper()
	m := linkToken.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no customer link in %q", body)
	}
	return m[1]
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }
