package models

import (
	"errors"
	"strings"
	"time"

	"github.com/diewo77/go-quotes/internal/opt"
	"github.com/diewo77/go-quotes/internal/pricing"
	"github.com/shopspring/decimal"
)

// ErrCustomerConflict is returned when a patch links a customer and also
// supplies snapshot fields.
var ErrCustomerConflict = errors.New("customer link and customer snapshot supplied together")

// QuotePatch is a partial update. Only fields with Set == true are applied;
// a set field holding the zero value clears the column.
type QuotePatch struct {
	CustomerID      opt.Value[*uint]  `json:"customer_id"`
	CustomerName    opt.Value[string] `json:"customer_name"`
	CustomerEmail   opt.Value[string] `json:"customer_email"`
	CustomerPhone   opt.Value[string] `json:"customer_phone"`
	CustomerCompany opt.Value[string] `json:"customer_company"`

	Title             opt.Value[string]      `json:"title"`
	Notes             opt.Value[string]      `json:"notes"`
	InternalNotes     opt.Value[string]      `json:"internal_notes"`
	ValidUntil        opt.Value[*time.Time]  `json:"valid_until"`
	RequestedDelivery opt.Value[*time.Time]  `json:"requested_delivery"`
	OwnerID           opt.Value[*uint]       `json:"owner_id"`
	ArtworkRequired   opt.Value[bool]        `json:"artwork_required"`
	Status            opt.Value[QuoteStatus] `json:"status"`

	DiscountValue opt.Value[decimal.Decimal]      `json:"discount_value"`
	DiscountType  opt.Value[pricing.DiscountType] `json:"discount_type"`
	TaxRate       opt.Value[decimal.Decimal]      `json:"tax_rate"`
	Shipping      opt.Value[decimal.Decimal]      `json:"shipping"`

	Items opt.Value[[]LineItem] `json:"items"`
}

// TouchesPricing is true when items or any pricing parameter is supplied.
func (p QuotePatch) TouchesPricing() bool {
	return p.Items.Set || p.DiscountValue.Set || p.DiscountType.Set || p.TaxRate.Set || p.Shipping.Set
}

func (p QuotePatch) touchesSnapshot() bool {
	return p.CustomerName.Set || p.CustomerEmail.Set || p.CustomerPhone.Set || p.CustomerCompany.Set
}

func (p QuotePatch) snapshotHasValues() bool {
	for _, f := range []opt.Value[string]{p.CustomerName, p.CustomerEmail, p.CustomerPhone, p.CustomerCompany} {
		if f.Set && strings.TrimSpace(f.V) != "" {
			return true
		}
	}
	return false
}

// CheckCustomer reports ErrCustomerConflict when the patch both links a
// customer and fills in snapshot fields.
func (p QuotePatch) CheckCustomer() error {
	if p.CustomerID.Set && p.CustomerID.V != nil && p.snapshotHasValues() {
		return ErrCustomerConflict
	}
	return nil
}

// ApplyTo writes the provided fields onto q. It does not reprice; callers
// check TouchesPricing and call Reprice.
func (p QuotePatch) ApplyTo(q *Quote) error {
	if err := p.CheckCustomer(); err != nil {
		return err
	}

	switch {
	case p.CustomerID.Set && p.CustomerID.V != nil:
		q.SetCustomer(LinkedCustomer{ID: *p.CustomerID.V})
	case p.CustomerID.Set || p.touchesSnapshot():
		snap := CustomerSnapshot{}
		if q.CustomerID == nil {
			snap, _ = q.CustomerRef().(CustomerSnapshot)
		}
		snap.Name = strings.TrimSpace(p.CustomerName.Or(snap.Name))
		snap.Email = strings.TrimSpace(p.CustomerEmail.Or(snap.Email))
		snap.Phone = strings.TrimSpace(p.CustomerPhone.Or(snap.Phone))
		snap.Company = strings.TrimSpace(p.CustomerCompany.Or(snap.Company))
		q.SetCustomer(snap)
	}

	if v, ok := p.Title.Get(); ok {
		q.Title = strings.TrimSpace(v)
	}
	if v, ok := p.Notes.Get(); ok {
		q.Notes = v
	}
	if v, ok := p.InternalNotes.Get(); ok {
		q.InternalNotes = v
	}
	if v, ok := p.ValidUntil.Get(); ok {
		q.ValidUntil = v
	}
	if v, ok := p.RequestedDelivery.Get(); ok {
		q.RequestedDelivery = v
	}
	if v, ok := p.OwnerID.Get(); ok {
		q.OwnerID = v
		q.Owner = nil
	}
	if v, ok := p.ArtworkRequired.Get(); ok {
		q.ArtworkRequired = v
	}
	if v, ok := p.Status.Get(); ok {
		q.Status = v
	}

	if v, ok := p.DiscountValue.Get(); ok {
		q.DiscountValue = v
	}
	if v, ok := p.DiscountType.Get(); ok {
		q.DiscountType = v
	}
	if v, ok := p.TaxRate.Get(); ok {
		q.TaxRate = v
	}
	if v, ok := p.Shipping.Get(); ok {
		q.Shipping = v
	}
	if items, ok := p.Items.Get(); ok {
		q.Items = make([]LineItem, len(items))
		for i, it := range items {
			it.ID = 0
			it.QuoteID = q.ID
			it.Name = strings.TrimSpace(it.Name)
			it.SortOrder = i
			q.Items[i] = it
		}
	}
	return nil
}
