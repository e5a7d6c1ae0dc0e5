package models

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Customer is a CRM record a quote can be linked to. Only the fields the
// quote workflow reads live here.
type Customer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"size:255;index" json:"email,omitempty"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Company string `gorm:"size:255" json:"company,omitempty"`
}

// CustomerRef is either LinkedCustomer or CustomerSnapshot.
type CustomerRef interface {
	isCustomerRef()
	// Key identifies the customer for change detection.
	Key() string
}

// LinkedCustomer points at a Customer record.
type LinkedCustomer struct {
	ID uint
}

func (LinkedCustomer) isCustomerRef() {}

func (c LinkedCustomer) Key() string { return "id:" + strconv.FormatUint(uint64(c.ID), 10) }

// CustomerSnapshot is a free-standing customer typed onto the quote.
type CustomerSnapshot struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

func (CustomerSnapshot) isCustomerRef() {}

// Key compares snapshots by name and email only.
func (c CustomerSnapshot) Key() string {
	return "snapshot:" + strings.TrimSpace(c.Name) + "|" + strings.ToLower(strings.TrimSpace(c.Email))
}

// Complete reports whether the snapshot has the name and email a quote needs.
func (c CustomerSnapshot) Complete() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.Email) != ""
}
