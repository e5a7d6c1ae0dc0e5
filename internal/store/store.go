// Package store persists the quote aggregate with GORM.
//
// Every read-modify-write goes through QuoteStore.Update, which serializes
// callers per quote inside the process and guards the row with an optimistic
// lock_version check across processes.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/opt"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means no quote matched the id or token.
	ErrNotFound = errors.New("store: quote not found")
	// ErrStale means the row changed between read and write.
	ErrStale = errors.New("store: quote modified concurrently")
	// ErrCustomerNotFound means a linked customer id does not exist.
	ErrCustomerNotFound = errors.New("store: customer not found")
)

const (
	// staleRetries bounds how often Update re-reads after losing the lock race.
	staleRetries = 3
	// numberRetries bounds quote-number allocation on unique violations.
	numberRetries = 5
)

// QuoteStore reads and writes quotes, line items, artwork versions and audit
// entries.
type QuoteStore struct {
	db    *gorm.DB
	now   func() time.Time
	locks *keyedMutex
}

// New returns a QuoteStore. A nil clock uses time.Now.
func New(db *gorm.DB, now func() time.Time) *QuoteStore {
	if now == nil {
		now = time.Now
	}
	return &QuoteStore{db: db, now: now, locks: newKeyedMutex()}
}

// DB exposes the underlying handle for read-only collaborators.
func (s *QuoteStore) DB() *gorm.DB { return s.db }

// Create allocates the next quote number for the current year and inserts
// the quote with its line items. A concurrent insert taking the same number
// makes the unique index fail, and allocation is retried.
func (s *QuoteStore) Create(ctx context.Context, q *models.Quote) error {
	year := s.now().Year()
	if q.LastModifiedAt.IsZero() {
		q.LastModifiedAt = s.now()
	}
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := models.NextQuoteNumber(tx, year)
			if err != nil {
				return err
			}
			q.QuoteNumber = number
			for i := range q.Items {
				q.Items[i].ID = 0
				q.Items[i].SortOrder = i
			}
			return tx.Omit("Customer", "Owner").Create(q).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	return err
}

// Get loads a quote with its items and linked customer.
func (s *QuoteStore) Get(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return load(s.db.WithContext(ctx), "id = ?", id)
}

// GetByAccessToken resolves a customer quote link.
func (s *QuoteStore) GetByAccessToken(ctx context.Context, token string) (*models.Quote, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return load(s.db.WithContext(ctx), "access_token = ?", token)
}

// GetByArtworkToken resolves a customer artwork link.
func (s *QuoteStore) GetByArtworkToken(ctx context.Context, token string) (*models.Quote, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return load(s.db.WithContext(ctx), "artwork_token = ?", token)
}

func load(db *gorm.DB, query string, arg any) (*models.Quote, error) {
	var q models.Quote
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("id ASC")
		}).
		Preload("Customer").
		Where(query, arg).
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Customer loads a CRM customer by id.
func (s *QuoteStore) Customer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status  models.QuoteStatus
	OwnerID *uint
	Search  string
	Limit   int
	Offset  int
}

// List returns quotes newest first, together with the unpaginated count.
func (s *QuoteStore) List(ctx context.Context, f ListFilter) ([]models.Quote, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Quote{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(quote_number) LIKE ? OR LOWER(title) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(customer_company) LIKE ?",
			like, like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var quotes []models.Quote
	err := q.Preload("Customer").
		Order("created_at DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&quotes).Error
	if err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

// Update runs fn against a freshly loaded quote inside a transaction. fn
// persists its changes through tx; if the optimistic lock is lost the whole
// transaction is rolled back and fn runs again on a new read, so fn must not
// have effects outside tx.
func (s *QuoteStore) Update(ctx context.Context, id uuid.UUID, fn func(tx *Tx, q *models.Quote) error) (*models.Quote, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out *models.Quote
	var err error
	for attempt := 0; attempt < staleRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			q, err := load(db, "id = ?", id)
			if err != nil {
				return err
			}
			if err := fn(&Tx{db: db, now: s.now}, q); err != nil {
				return err
			}
			out = q
			return nil
		})
		if !errors.Is(err, ErrStale) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFields applies only the fields present in patch. Supplying items or
// any pricing parameter reprices the quote as a whole; supplied items replace
// the stored set.
func (s *QuoteStore) UpdateFields(ctx context.Context, id uuid.UUID, patch models.QuotePatch) (*models.Quote, error) {
	if err := patch.CheckCustomer(); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, func(tx *Tx, q *models.Quote) error {
		if err := patch.ApplyTo(q); err != nil {
			return err
		}
		if patch.TouchesPricing() {
			if err := q.Reprice(); err != nil {
				return err
			}
		}
		if err := tx.SaveQuote(q); err != nil {
			return err
		}
		if patch.Items.Set {
			return tx.ReplaceLineItems(q)
		}
		return nil
	})
}

// ReplaceLineItems swaps the whole item set and reprices in one transaction.
func (s *QuoteStore) ReplaceLineItems(ctx context.Context, id uuid.UUID, items []models.LineItem) (*models.Quote, error) {
	return s.UpdateFields(ctx, id, models.QuotePatch{Items: opt.Of(items)})
}

// Delete removes the quote, its items and its artwork history. Audit entries
// are kept. The deleted quote is returned.
func (s *QuoteStore) Delete(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out *models.Quote
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		q, err := load(db, "id = ?", id)
		if err != nil {
			return err
		}
		if err := (&Tx{db: db, now: s.now}).DeleteQuote(q); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AuditEntries lists the audit trail of a quote, newest first.
func (s *QuoteStore) AuditEntries(ctx context.Context, quoteID uuid.UUID) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// ArtworkVersions lists archived artwork, highest version first.
func (s *QuoteStore) ArtworkVersions(ctx context.Context, quoteID uuid.UUID) ([]models.ArtworkVersion, error) {
	var versions []models.ArtworkVersion
	err := s.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("version DESC").
		Order("created_at DESC").
		Find(&versions).Error
	return versions, err
}
