package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction is the semantic category of an audit entry.
type AuditAction string

const (
	AuditStatusChange     AuditAction = "STATUS_CHANGE"
	AuditLineItemsChanged AuditAction = "LINE_ITEMS_CHANGED"
	AuditCustomerChanged  AuditAction = "CUSTOMER_CHANGED"
	AuditOwnerChanged     AuditAction = "OWNER_CHANGED"
	AuditPricingUpdated   AuditAction = "PRICING_UPDATED"
	AuditGeneralUpdate    AuditAction = "GENERAL_UPDATE"
	AuditArtworkUploaded  AuditAction = "ARTWORK_UPLOADED"
	AuditArtworkUpdated   AuditAction = "ARTWORK_UPDATED"
	AuditArtworkSent      AuditAction = "ARTWORK_SENT"
)

// ActorType tells whether an audit entry was caused by staff or by a customer.
type ActorType string

const (
	ActorInternal ActorType = "INTERNAL"
	ActorCustomer ActorType = "CUSTOMER"
)

// AuditLog is one append-only record of a change to a quote. Entries are
// never updated or deleted, and survive deletion of the quote itself.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	QuoteID     uuid.UUID   `gorm:"type:uuid;index;not null" json:"quote_id"`
	QuoteNumber string      `gorm:"size:20;index" json:"quote_number"`
	Action      AuditAction `gorm:"size:40;not null" json:"action"`

	// Category-scoped payloads.
	Before datatypes.JSON `json:"before,omitempty"`
	After  datatypes.JSON `json:"after,omitempty"`

	ActorType ActorType `gorm:"size:20;not null" json:"actor_type"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	UserName  string    `gorm:"size:255" json:"user_name,omitempty"`
	UserEmail string    `gorm:"size:255" json:"user_email,omitempty"`
}

// BeforeCreate assigns the primary key.
func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
