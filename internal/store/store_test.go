package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/opt"
	"github.com/diewo77/go-quotes/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	if err := db.AutoMigrate(&models.Permission{}, &models.Profile{}, &models.Customer{}, &models.User{}, &models.Quote{}, &models.LineItem{},
		&models.ArtworkVersion{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *QuoteStore {
	return New(setupTestDB(t), func() time.Time { return testNow })
}

func newQuote() *models.Quote {
	q := &models.Quote{
		CustomerName:  "Jane Roe",
		CustomerEmail: "jane@example.com",
		Title:         "Flyers",
		Status:        models.QuoteStatusPending,
		DiscountType:  pricing.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		TaxRate:       decimal.NewFromInt(8),
		Shipping:      decimal.NewFromInt(15),
		Items: []models.LineItem{
			{Name: "Flyer A5", Quantity: 10, UnitPrice: decimal.NewFromInt(12)},
		},
	}
	if err := q.Reprice(); err != nil {
		panic(err)
	}
	return q
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		q := newQuote()
		if err := s.Create(ctx, q); err != nil {
			t.Fatalf("create: %v", err)
		}
		if want := models.FormatQuoteNumber(2026, i); q.QuoteNumber != want {
			t.Fatalf("number = %s, want %s", q.QuoteNumber, want)
		}
	}
}

func TestCreateConcurrentNumbersAreUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := newQuote()
			if err := s.Create(ctx, q); err != nil {
				errs <- err
				return
			}
			numbers <- q.QuoteNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		t.Fatalf("create: %v", err)
	}
	seen := map[string]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("duplicate quote number %s", num)
		}
		seen[num] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d numbers, got %d", n, len(seen))
	}
}

func TestGetLoadsItemsInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	q.Items = append(q.Items, models.LineItem{Name: "Poster", Quantity: 1, UnitPrice: decimal.NewFromInt(30)})
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Name != "Flyer A5" || got.Items[1].Name != "Poster" {
		t.Fatalf("unexpected items %+v", got.Items)
	}

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByAccessToken(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty token must not match, got %v", err)
	}
}

func TestUpdateFieldsPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	q.Notes = "keep me"
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.UpdateFields(ctx, q.ID, models.QuotePatch{Title: opt.Of("Posters")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Posters" || got.Notes != "keep me" {
		t.Fatalf("unexpected fields title=%q notes=%q", got.Title, got.Notes)
	}
	if got.LockVersion != 1 {
		t.Fatalf("lock version = %d, want 1", got.LockVersion)
	}

	reloaded, _ := s.Get(ctx, q.ID)
	if reloaded.Notes != "keep me" || reloaded.Title != "Posters" {
		t.Fatalf("persisted fields wrong: %+v", reloaded)
	}
	if !reloaded.Total.Equal(decimal.RequireFromString("131.64")) {
		t.Fatalf("untouched pricing changed: %s", reloaded.Total)
	}

	cleared, err := s.UpdateFields(ctx, q.ID, models.QuotePatch{Notes: opt.Of("")})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.Notes != "" || cleared.Title != "Posters" {
		t.Fatalf("explicit clear failed: %+v", cleared)
	}
}

func TestUpdateFieldsErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpdateFields(ctx, uuid.New(), models.QuotePatch{Title: opt.Of("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	q := newQuote()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}
	id := uint(1)
	_, err := s.UpdateFields(ctx, q.ID, models.QuotePatch{
		CustomerID:   opt.Of(&id),
		CustomerName: opt.Of("Other"),
		Title:        opt.Of("Changed"),
	})
	if !errors.Is(err, models.ErrCustomerConflict) {
		t.Fatalf("expected ErrCustomerConflict, got %v", err)
	}
	reloaded, _ := s.Get(ctx, q.ID)
	if reloaded.Title != "Flyers" {
		t.Fatalf("conflicting update partially applied")
	}

	bad := []models.LineItem{{Name: "Broken", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}}
	_, err = s.UpdateFields(ctx, q.ID, models.QuotePatch{Items: opt.Of(bad), Title: opt.Of("Bundled")})
	var ie *pricing.InputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected pricing input error, got %v", err)
	}
	reloaded, _ = s.Get(ctx, q.ID)
	if reloaded.Title != "Flyers" || len(reloaded.Items) != 1 {
		t.Fatalf("invalid pricing must block the whole update")
	}
}

func TestReplaceLineItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}

	items := []models.LineItem{
		{Name: "Banner", Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		{Name: "Sticker", Quantity: 100, UnitPrice: decimal.RequireFromString("0.25"), Discount: decimal.NewFromInt(5)},
	}
	got, err := s.ReplaceLineItems(ctx, q.ID, items)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	// 100 + 20 = 120 subtotal, same adjustments as the base quote.
	if !got.Subtotal.Equal(decimal.NewFromInt(120)) || !got.Total.Equal(decimal.RequireFromString("131.64")) {
		t.Fatalf("unexpected pricing subtotal=%s total=%s", got.Subtotal, got.Total)
	}

	var count int64
	s.DB().Model(&models.LineItem{}).Where("quote_id = ?", q.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 stored items, got %d", count)
	}
	reloaded, _ := s.Get(ctx, q.ID)
	if reloaded.Items[0].Name != "Banner" || reloaded.Items[1].Name != "Sticker" {
		t.Fatalf("order not preserved: %+v", reloaded.Items)
	}
}

func TestUpdateRetriesStaleWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}

	calls := 0
	got, err := s.Update(ctx, q.ID, func(tx *Tx, q *models.Quote) error {
		calls++
		if calls == 1 {
			// Another writer got there first.
			if err := tx.db.Model(&models.Quote{}).Where("id = ?", q.ID).
				Update("lock_version", gorm.Expr("lock_version + 1")).Error; err != nil {
				return err
			}
		}
		q.Title = "Retried"
		return tx.SaveQuote(q)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if got.Title != "Retried" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestUpdateGivesUpWhenAlwaysStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}
	calls := 0
	_, err := s.Update(ctx, q.ID, func(tx *Tx, q *models.Quote) error {
		calls++
		return ErrStale
	})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if calls != staleRetries {
		t.Fatalf("expected %d attempts, got %d", staleRetries, calls)
	}
}

func TestAppendAuditFailureKeepsMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}

	var auditErr error
	_, err := s.Update(ctx, q.ID, func(tx *Tx, q *models.Quote) error {
		q.Title = "Saved anyway"
		if err := tx.SaveQuote(q); err != nil {
			return err
		}
		dup := uuid.New()
		auditErr = tx.AppendAudit([]models.AuditLog{
			{ID: dup, QuoteID: q.ID, Action: models.AuditGeneralUpdate, ActorType: models.ActorInternal},
			{ID: dup, QuoteID: q.ID, Action: models.AuditStatusChange, ActorType: models.ActorInternal},
		})
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if auditErr == nil {
		t.Fatalf("expected audit insert to fail on duplicate id")
	}
	reloaded, _ := s.Get(ctx, q.ID)
	if reloaded.Title != "Saved anyway" {
		t.Fatalf("mutation rolled back with audit failure")
	}
	entries, _ := s.AuditEntries(ctx, q.ID)
	if len(entries) != 0 {
		t.Fatalf("audit batch must be all-or-nothing, got %d entries", len(entries))
	}
}

func TestDeleteKeepsAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := newQuote()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Update(ctx, q.ID, func(tx *Tx, q *models.Quote) error {
		if err := tx.AppendArtworkVersion(&models.ArtworkVersion{QuoteID: q.ID, Version: 1, URL: "u", Status: models.ArtworkStatusPending}); err != nil {
			return err
		}
		return tx.AppendAudit([]models.AuditLog{{QuoteID: q.ID, QuoteNumber: q.QuoteNumber, Action: models.AuditArtworkUploaded, ActorType: models.ActorInternal}})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := s.Delete(ctx, q.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.QuoteNumber != q.QuoteNumber {
		t.Fatalf("deleted quote not returned")
	}
	if _, err := s.Get(ctx, q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("quote still present: %v", err)
	}
	var items, versions int64
	s.DB().Model(&models.LineItem{}).Where("quote_id = ?", q.ID).Count(&items)
	s.DB().Model(&models.ArtworkVersion{}).Where("quote_id = ?", q.ID).Count(&versions)
	if items != 0 || versions != 0 {
		t.Fatalf("children not removed: items=%d versions=%d", items, versions)
	}
	entries, _ := s.AuditEntries(ctx, q.ID)
	if len(entries) != 1 {
		t.Fatalf("audit entries must survive deletion, got %d", len(entries))
	}
	if _, err := s.Delete(ctx, q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, title := range []string{"Flyers", "Banners", "Business cards"} {
		q := newQuote()
		q.Title = title
		if i == 1 {
			q.Status = models.QuoteStatusSent
		}
		if err := s.Create(ctx, q); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, total, err := s.List(ctx, ListFilter{})
	if err != nil || total != 3 || len(all) != 3 {
		t.Fatalf("list all: total=%d len=%d err=%v", total, len(all), err)
	}
	sent, total, _ := s.List(ctx, ListFilter{Status: models.QuoteStatusSent})
	if total != 1 || sent[0].Title != "Banners" {
		t.Fatalf("status filter wrong: %+v", sent)
	}
	found, total, _ := s.List(ctx, ListFilter{Search: "CARDS"})
	if total != 1 || found[0].Title != "Business cards" {
		t.Fatalf("search wrong: %+v", found)
	}
	page, total, _ := s.List(ctx, ListFilter{Limit: 2})
	if total != 3 || len(page) != 2 {
		t.Fatalf("pagination wrong: total=%d len=%d", total, len(page))
	}
}

func TestKeyedMutexSerializes(t *testing.T) {
	k := newKeyedMutex()
	id := uuid.New()
	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(id)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxInside)
	}
	if len(k.locks) != 0 {
		t.Fatalf("lock entries leaked: %d", len(k.locks))
	}
}
