package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one priced entry on a quote.
type LineItem struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	QuoteID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`

	// Optional catalog reference; custom charges have none.
	ProductID *uint `gorm:"index" json:"product_id,omitempty"`

	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"size:1000" json:"description,omitempty"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"discount"`
	Total       decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"total"`

	// Position for ordering
	SortOrder int `gorm:"not null;default:0" json:"sort_order"`
}
