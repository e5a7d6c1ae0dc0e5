package store

import (
	"errors"
	"time"

	"github.com/diewo77/go-quotes/internal/models"
	"gorm.io/gorm"
)

// Tx is the write side of one QuoteStore.Update call.
type Tx struct {
	db  *gorm.DB
	now func() time.Time
}

// Now is the store clock.
func (t *Tx) Now() time.Time { return t.now() }

// SaveQuote writes the quote header if nobody else wrote it since it was
// read. It bumps lock_version and lastModifiedAt. Items are not touched.
func (t *Tx) SaveQuote(q *models.Quote) error {
	prev := q.LockVersion
	now := t.now()

	cols := quoteColumns(q)
	cols["lock_version"] = prev + 1
	cols["last_modified_at"] = now
	cols["updated_at"] = now

	res := t.db.Model(&models.Quote{}).
		Where("id = ? AND lock_version = ?", q.ID, prev).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	q.LockVersion = prev + 1
	q.LastModifiedAt = now
	q.UpdatedAt = now
	return nil
}

// ReplaceLineItems deletes the stored items of q and inserts q.Items in
// order. It runs inside the surrounding transaction, so readers never see a
// mix of old and new items.
func (t *Tx) ReplaceLineItems(q *models.Quote) error {
	if err := t.db.Where("quote_id = ?", q.ID).Delete(&models.LineItem{}).Error; err != nil {
		return err
	}
	if len(q.Items) == 0 {
		return nil
	}
	for i := range q.Items {
		q.Items[i].ID = 0
		q.Items[i].QuoteID = q.ID
		q.Items[i].SortOrder = i
	}
	return t.db.Create(&q.Items).Error
}

// AppendAudit inserts a batch of audit entries under a savepoint. Either
// every entry is written or none is; a failure rolls back to the savepoint
// only, leaving the surrounding mutation intact for the caller to commit.
func (t *Tx) AppendAudit(entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return t.db.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&entries).Error
	})
}

// AppendArtworkVersion archives a superseded artwork.
func (t *Tx) AppendArtworkVersion(v *models.ArtworkVersion) error {
	return t.db.Create(v).Error
}

// Customer loads a linked customer within the transaction.
func (t *Tx) Customer(id uint) (*models.Customer, error) {
	var c models.Customer
	if err := t.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// DeleteQuote hard-deletes the quote with its items and artwork history.
func (t *Tx) DeleteQuote(q *models.Quote) error {
	if err := t.db.Where("quote_id = ?", q.ID).Delete(&models.LineItem{}).Error; err != nil {
		return err
	}
	if err := t.db.Where("quote_id = ?", q.ID).Delete(&models.ArtworkVersion{}).Error; err != nil {
		return err
	}
	res := t.db.Where("id = ?", q.ID).Delete(&models.Quote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func quoteColumns(q *models.Quote) map[string]any {
	return map[string]any{
		"customer_id":      q.CustomerID,
		"customer_name":    q.CustomerName,
		"customer_email":   q.CustomerEmail,
		"customer_phone":   q.CustomerPhone,
		"customer_company": q.CustomerCompany,

		"title":              q.Title,
		"notes":              q.Notes,
		"internal_notes":     q.InternalNotes,
		"valid_until":        q.ValidUntil,
		"requested_delivery": q.RequestedDelivery,
		"owner_id":           q.OwnerID,

		"subtotal":       q.Subtotal,
		"discount_value": q.DiscountValue,
		"discount_type":  q.DiscountType,
		"discount":       q.Discount,
		"tax_rate":       q.TaxRate,
		"tax":            q.Tax,
		"shipping":       q.Shipping,
		"total":          q.Total,

		"status":       q.Status,
		"sent_at":      q.SentAt,
		"approved_at":  q.ApprovedAt,
		"declined_at":  q.DeclinedAt,
		"access_token": q.AccessToken,

		"artwork_required":       q.ArtworkRequired,
		"artwork_url":            q.ArtworkURL,
		"artwork_file_name":      q.ArtworkFileName,
		"artwork_token":          q.ArtworkToken,
		"artwork_version":        q.ArtworkVersion,
		"artwork_status":         q.ArtworkStatus,
		"artwork_uploaded_by_id": q.ArtworkUploadedByID,
		"artwork_sent_at":        q.ArtworkSentAt,
		"artwork_approved_at":    q.ArtworkApprovedAt,
		"artwork_declined_at":    q.ArtworkDeclinedAt,
		"artwork_notes":          q.ArtworkNotes,
	}
}
