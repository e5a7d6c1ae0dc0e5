package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/metrics"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/pricing"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

var (
	editor = actor.Internal{ID: 3, Name: "Eve", Email: "eve@printco.test", Role: actor.RoleEditor}
	admin  = actor.Internal{ID: 2, Name: "Ada", Email: "ada@printco.test", Role: actor.RoleAdmin}
	super  = actor.Internal{ID: 1, Name: "Sam", Email: "sam@printco.test", Role: actor.RoleSuperAdmin}
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) notify.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.fail {
		return notify.Result{Err: errors.New("smtp: connection refused")}
	}
	return notify.Result{Success: true, MessageID: fmt.Sprintf("<msg-%d@printco.test>", len(m.sent))}
}

func (m *recordingMailer) messages() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.sent...)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (s *recordingSink) Track(_ context.Context, e models.ActivityLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.ActivityType
	}
	return out
}

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	db      *gorm.DB
	store   *store.QuoteStore
	quotes  *QuoteService
	gateway *ApprovalGateway
	mailer  *recordingMailer
	sink    *recordingSink
	metrics *metrics.Metrics
	logs    *logBuffer

	mu    sync.Mutex
	clock time.Time
}

func (h *harness) now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = h.clock.Add(d)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Permission{}, &models.Profile{}, &models.Customer{}, &models.User{},
		&models.Quote{}, &models.LineItem{}, &models.ArtworkVersion{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := &harness{
		db:      db,
		mailer:  &recordingMailer{},
		sink:    &recordingSink{},
		metrics: metrics.New(prometheus.NewRegistry()),
		logs:    &logBuffer{},
		clock:   testNow,
	}
	h.store = store.New(db, h.now)
	deps := Deps{
		Store:    h.store,
		Gate:     policy.NewRoleGate(),
		Mailer:   h.mailer,
		Activity: h.sink,
		Metrics:  h.metrics,
		Logger:   zerolog.New(h.logs),
		BaseURL:  "https://shop.printco.test/",
		Site:     notify.Site{Name: "PrintCo", ContactEmail: "hello@printco.test", Lang: "en"},
		Now:      h.now,
	}
	h.quotes = NewQuoteService(deps)
	h.gateway = NewApprovalGateway(deps)
	return h
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// flyerInput is the reference scenario: 10 x 12.00, 10% off, 8% tax, 15
// shipping, total 131.64.
func flyerInput() CreateInput {
	return CreateInput{
		CustomerName:  "Jane Roe",
		CustomerEmail: "jane@example.com",
		Title:         "Flyers",
		InternalNotes: "cost basis 4.10/unit",
		DiscountType:  pricing.DiscountPercentage,
		DiscountValue: d("10"),
		TaxRate:       d("8"),
		Shipping:      d("15"),
		Items: []models.LineItem{
			{Name: "Flyer A5", Quantity: 10, UnitPrice: d("12.00")},
		},
	}
}

func mustCreate(t *testing.T, h *harness, in CreateInput) *models.Quote {
	t.Helper()
	q, err := h.quotes.Create(context.Background(), admin, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return q
}

func auditActions(t *testing.T, h *harness, id uuid.UUID) map[models.AuditAction]int {
	t.Helper()
	entries, err := h.store.AuditEntries(context.Background(), id)
	if err != nil {
		t.Fatalf("audit entries: %v", err)
	}
	out := map[models.AuditAction]int{}
	for _, e := range entries {
		out[e.Action]++
	}
	return out
}

func countEntries(t *testing.T, h *harness, id uuid.UUID) int {
	t.Helper()
	entries, err := h.store.AuditEntries(context.Background(), id)
	if err != nil {
		t.Fatalf("audit entries: %v", err)
	}
	return len(entries)
}

func wantCode(t *testing.T, err error, kind Kind, code string) *Error {
	t.Helper()
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *Error %s, got %v", code, err)
	}
	if se.Kind != kind || se.Code != code {
		t.Fatalf("got %s/%s (%v), want %s/%s", se.Kind, se.Code, err, kind, code)
	}
	return se
}

func tokenFromURL(t *testing.T, url, prefix string) string {
	t.Helper()
	i := strings.Index(url, prefix)
	if i < 0 {
		t.Fatalf("url %q has no %q", url, prefix)
	}
	tok := url[i+len(prefix):]
	if j := strings.IndexAny(tok, "?\""); j >= 0 {
		tok = tok[:j]
	}
	return tok
}
