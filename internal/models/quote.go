package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-quotes/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteStatus is a state of the quote lifecycle.
type QuoteStatus string

const (
	QuoteStatusPending         QuoteStatus = "PENDING"
	QuoteStatusReviewing       QuoteStatus = "REVIEWING"
	QuoteStatusSent            QuoteStatus = "SENT"
	QuoteStatusArtworkPending  QuoteStatus = "ARTWORK_PENDING"
	QuoteStatusArtworkApproved QuoteStatus = "ARTWORK_APPROVED"
	QuoteStatusArtworkDeclined QuoteStatus = "ARTWORK_DECLINED"
	QuoteStatusApproved        QuoteStatus = "APPROVED"
	QuoteStatusDeclined        QuoteStatus = "DECLINED"
	QuoteStatusArchived        QuoteStatus = "ARCHIVED"
)

// Valid reports whether s is a known status.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusReviewing, QuoteStatusSent,
		QuoteStatusArtworkPending, QuoteStatusArtworkApproved, QuoteStatusArtworkDeclined,
		QuoteStatusApproved, QuoteStatusDeclined, QuoteStatusArchived:
		return true
	}
	return false
}

// IsArtworkState is true for the three statuses of the artwork sub-flow.
func (s QuoteStatus) IsArtworkState() bool {
	return s == QuoteStatusArtworkPending || s == QuoteStatusArtworkApproved || s == QuoteStatusArtworkDeclined
}

// IsTerminal is true once a quote has been decided or archived.
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusApproved || s == QuoteStatusDeclined || s == QuoteStatusArchived
}

// Quote is the aggregate root of the quote lifecycle.
type Quote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Q<year>-<seq>, unique across all quotes
	QuoteNumber string `gorm:"size:20;uniqueIndex;not null" json:"quote_number"`

	// Either CustomerID is set, or the snapshot fields below are.
	CustomerID      *uint     `gorm:"index" json:"customer_id,omitempty"`
	Customer        *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CustomerName    string    `gorm:"size:255" json:"customer_name,omitempty"`
	CustomerEmail   string    `gorm:"size:255" json:"customer_email,omitempty"`
	CustomerPhone   string    `gorm:"size:50" json:"customer_phone,omitempty"`
	CustomerCompany string    `gorm:"size:255" json:"customer_company,omitempty"`

	Title             string     `gorm:"size:255" json:"title"`
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	InternalNotes     string     `gorm:"type:text" json:"internal_notes,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	RequestedDelivery *time.Time `json:"requested_delivery,omitempty"`

	OwnerID *uint `gorm:"index" json:"owner_id,omitempty"`
	Owner   *User `gorm:"foreignKey:OwnerID" json:"-"`

	// Pricing. DiscountValue is what the user typed; Discount is the computed amount.
	Subtotal      decimal.Decimal      `gorm:"type:numeric(20,8);not null" json:"subtotal"`
	DiscountValue decimal.Decimal      `gorm:"type:numeric(20,8);not null" json:"discount_value"`
	DiscountType  pricing.DiscountType `gorm:"size:20;not null" json:"discount_type"`
	Discount      decimal.Decimal      `gorm:"type:numeric(20,8);not null" json:"discount"`
	TaxRate       decimal.Decimal      `gorm:"type:numeric(10,6);not null" json:"tax_rate"`
	Tax           decimal.Decimal      `gorm:"type:numeric(20,8);not null" json:"tax"`
	Shipping      decimal.Decimal      `gorm:"type:numeric(20,8);not null" json:"shipping"`
	Total         decimal.Decimal      `gorm:"type:numeric(20,8);not null" json:"total"`

	Status         QuoteStatus `gorm:"size:20;not null;index" json:"status"`
	SentAt         *time.Time  `json:"sent_at,omitempty"`
	ApprovedAt     *time.Time  `json:"approved_at,omitempty"`
	DeclinedAt     *time.Time  `json:"declined_at,omitempty"`
	LastModifiedAt time.Time   `json:"last_modified_at"`
	AccessToken    *string     `gorm:"size:64;uniqueIndex" json:"-"`

	ArtworkRequired     bool          `gorm:"default:false" json:"artwork_required"`
	ArtworkURL          *string       `gorm:"size:1024" json:"artwork_url,omitempty"`
	ArtworkFileName     *string       `gorm:"size:255" json:"artwork_file_name,omitempty"`
	ArtworkToken        *string       `gorm:"size:64;uniqueIndex" json:"-"`
	ArtworkVersion      int           `gorm:"not null;default:1" json:"artwork_version"`
	ArtworkStatus       ArtworkStatus `gorm:"size:20" json:"artwork_status,omitempty"`
	ArtworkUploadedByID *uint         `json:"artwork_uploaded_by_id,omitempty"`
	ArtworkSentAt       *time.Time    `json:"artwork_sent_at,omitempty"`
	ArtworkApprovedAt   *time.Time    `json:"artwork_approved_at,omitempty"`
	ArtworkDeclinedAt   *time.Time    `json:"artwork_declined_at,omitempty"`
	ArtworkNotes        *string       `gorm:"type:text" json:"artwork_notes,omitempty"`

	// Optimistic lock, bumped on every write.
	LockVersion int `gorm:"not null;default:0" json:"-"`

	Items []LineItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items"`
}

// BeforeCreate assigns the primary key.
func (q *Quote) BeforeCreate(_ *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// CustomerRef returns the customer the quote is addressed to.
func (q *Quote) CustomerRef() CustomerRef {
	if q.CustomerID != nil {
		return LinkedCustomer{ID: *q.CustomerID}
	}
	return CustomerSnapshot{
		Name:    q.CustomerName,
		Email:   q.CustomerEmail,
		Phone:   q.CustomerPhone,
		Company: q.CustomerCompany,
	}
}

// SetCustomer points the quote at ref. Linking a customer clears the snapshot
// and setting a snapshot unlinks any customer.
func (q *Quote) SetCustomer(ref CustomerRef) {
	switch c := ref.(type) {
	case LinkedCustomer:
		id := c.ID
		q.CustomerID = &id
		if q.Customer != nil && q.Customer.ID != id {
			q.Customer = nil
		}
		q.CustomerName, q.CustomerEmail, q.CustomerPhone, q.CustomerCompany = "", "", "", ""
	case CustomerSnapshot:
		q.CustomerID = nil
		q.Customer = nil
		q.CustomerName = c.Name
		q.CustomerEmail = c.Email
		q.CustomerPhone = c.Phone
		q.CustomerCompany = c.Company
	}
}

// RecipientEmail resolves where customer mail goes: the linked customer's
// address when one is linked and loaded, the snapshot address otherwise.
func (q *Quote) RecipientEmail() string {
	if q.CustomerID != nil {
		if q.Customer != nil {
			return strings.TrimSpace(q.Customer.Email)
		}
		return ""
	}
	return strings.TrimSpace(q.CustomerEmail)
}

// RecipientName is the display name of the customer.
func (q *Quote) RecipientName() string {
	if q.CustomerID != nil && q.Customer != nil {
		return q.Customer.Name
	}
	return q.CustomerName
}

// IsExpired reports whether the validity window closed before now.
func (q *Quote) IsExpired(now time.Time) bool {
	return q.ValidUntil != nil && q.ValidUntil.Before(now)
}

// HasArtwork is true once an artwork file is attached.
func (q *Quote) HasArtwork() bool {
	return q.ArtworkURL != nil && *q.ArtworkURL != ""
}

// ArtworkDisposition returns the stored artwork status, falling back to
// timestamp inference for rows written before the column existed.
func (q *Quote) ArtworkDisposition() ArtworkStatus {
	if q.ArtworkStatus != "" && q.ArtworkStatus != ArtworkStatusNone {
		return q.ArtworkStatus
	}
	if !q.HasArtwork() {
		return ArtworkStatusNone
	}
	return InferArtworkStatus(q.ArtworkSentAt, q.ArtworkApprovedAt, q.ArtworkDeclinedAt)
}

// ArtworkResponsePending is true while the customer has neither approved nor
// declined the current artwork.
func (q *Quote) ArtworkResponsePending() bool {
	return q.ArtworkApprovedAt == nil && q.ArtworkDeclinedAt == nil
}

// PricingParams returns the quote-level pricing inputs.
func (q *Quote) PricingParams() pricing.Params {
	return pricing.Params{
		DiscountValue: q.DiscountValue,
		DiscountType:  q.DiscountType,
		TaxRate:       q.TaxRate,
		Shipping:      q.Shipping,
	}
}

// PricingItems returns the line items as pricing input, in sort order.
func (q *Quote) PricingItems() []pricing.Item {
	items := make([]pricing.Item, len(q.Items))
	for i, it := range q.Items {
		items[i] = pricing.Item{Quantity: it.Quantity, UnitPrice: it.UnitPrice, Discount: it.Discount}
	}
	return items
}

// ApplyTotals stores a full pricing result. The four computed amounts are
// always written together.
func (q *Quote) ApplyTotals(t pricing.Totals) {
	q.Subtotal = t.Subtotal
	q.Discount = t.Discount
	q.Tax = t.Tax
	q.Total = t.Total
	for i := range q.Items {
		if i < len(t.ItemTotals) {
			q.Items[i].Total = t.ItemTotals[i]
		}
	}
}

// Reprice recomputes line totals and the quote amounts from the current
// items and parameters. On error the quote is left untouched.
func (q *Quote) Reprice() error {
	t, err := pricing.Calculate(q.PricingItems(), q.PricingParams())
	if err != nil {
		return err
	}
	q.ApplyTotals(t)
	return nil
}

// Clone returns a deep copy usable as an immutable "before" snapshot.
func (q *Quote) Clone() *Quote {
	c := *q
	c.Items = make([]LineItem, len(q.Items))
	copy(c.Items, q.Items)
	if q.Customer != nil {
		cust := *q.Customer
		c.Customer = &cust
	}
	c.Owner = nil
	c.CustomerID = clonePtr(q.CustomerID)
	c.OwnerID = clonePtr(q.OwnerID)
	c.ValidUntil = clonePtr(q.ValidUntil)
	c.RequestedDelivery = clonePtr(q.RequestedDelivery)
	c.SentAt = clonePtr(q.SentAt)
	c.ApprovedAt = clonePtr(q.ApprovedAt)
	c.DeclinedAt = clonePtr(q.DeclinedAt)
	c.AccessToken = clonePtr(q.AccessToken)
	c.ArtworkURL = clonePtr(q.ArtworkURL)
	c.ArtworkFileName = clonePtr(q.ArtworkFileName)
	c.ArtworkToken = clonePtr(q.ArtworkToken)
	c.ArtworkUploadedByID = clonePtr(q.ArtworkUploadedByID)
	c.ArtworkSentAt = clonePtr(q.ArtworkSentAt)
	c.ArtworkApprovedAt = clonePtr(q.ArtworkApprovedAt)
	c.ArtworkDeclinedAt = clonePtr(q.ArtworkDeclinedAt)
	c.ArtworkNotes = clonePtr(q.ArtworkNotes)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// QuoteNumberPrefix is the number prefix for quotes created in year.
func QuoteNumberPrefix(year int) string {
	return fmt.Sprintf("Q%d-", year)
}

// FormatQuoteNumber builds a quote number. Format: Q<year>-<seq> (e.g., Q2026-0001).
func FormatQuoteNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", QuoteNumberPrefix(year), seq)
}

// ParseQuoteSequence extracts the sequence part of a quote number for year.
func ParseQuoteSequence(number string, year int) (int, bool) {
	rest, ok := strings.CutPrefix(number, QuoteNumberPrefix(year))
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextQuoteNumber generates the next quote number for year from the highest
// existing one. Longer numbers sort first so that 10000 follows 9999.
func NextQuoteNumber(db *gorm.DB, year int) (string, error) {
	var numbers []string
	err := db.Model(&Quote{}).
		Where("quote_number LIKE ?", QuoteNumberPrefix(year)+"%").
		Order("LENGTH(quote_number) DESC").
		Order("quote_number DESC").
		Limit(1).
		Pluck("quote_number", &numbers).Error
	if err != nil {
		return "", err
	}
	seq := 0
	if len(numbers) > 0 {
		if n, ok := ParseQuoteSequence(numbers[0], year); ok {
			seq = n
		}
	}
	return FormatQuoteNumber(year, seq+1), nil
}
