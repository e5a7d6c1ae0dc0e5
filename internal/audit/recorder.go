// Package audit turns a before/after pair of quote snapshots into audit
// entries, one per semantic category that actually changed.
//
// The package is pure: it never touches the database. Callers persist the
// returned entries in the same transaction as the mutation they describe.
package audit

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const dayLayout = "2006-01-02"

// Recorder builds audit entries stamped with a clock.
type Recorder struct {
	now func() time.Time
}

// NewRecorder returns a Recorder. A nil clock uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Diff compares before and after and returns the entries describing what
// changed. Fields are compared by value, so resubmitting an unchanged value
// yields nothing.
func (r *Recorder) Diff(before, after *models.Quote, by actor.Actor) []models.AuditLog {
	var out []models.AuditLog

	if before.Status != after.Status {
		out = append(out, r.entry(after, models.AuditStatusChange, by,
			statusPayload{Status: before.Status}, statusPayload{Status: after.Status}))
	}

	if before.CustomerRef().Key() != after.CustomerRef().Key() {
		out = append(out, r.entry(after, models.AuditCustomerChanged, by,
			customerPayloadOf(before), customerPayloadOf(after)))
	}

	if !sameUint(before.OwnerID, after.OwnerID) {
		out = append(out, r.entry(after, models.AuditOwnerChanged, by,
			ownerPayload{OwnerID: before.OwnerID}, ownerPayload{OwnerID: after.OwnerID}))
	}

	bItems, aItems := itemTuples(before.Items), itemTuples(after.Items)
	if !sameItems(bItems, aItems) {
		out = append(out, r.entry(after, models.AuditLineItemsChanged, by,
			itemsPayload{Items: bItems, Subtotal: before.Subtotal}, itemsPayload{Items: aItems, Subtotal: after.Subtotal}))
	}

	if pricingChanged(before, after) {
		out = append(out, r.entry(after, models.AuditPricingUpdated, by, pricingPayloadOf(before), pricingPayloadOf(after)))
	}

	if fields := changedGeneralFields(before, after); len(fields) > 0 {
		out = append(out, r.entry(after, models.AuditGeneralUpdate, by,
			generalPayloadOf(before, fields), generalPayloadOf(after, fields)))
	}

	return out
}

// ArtworkUploaded records the first artwork attached to a quote.
func (r *Recorder) ArtworkUploaded(q *models.Quote, by actor.Actor) models.AuditLog {
	return r.entry(q, models.AuditArtworkUploaded, by, nil, artworkPayloadOf(q))
}

// ArtworkReplaced records a re-upload; prev is the archived version.
func (r *Recorder) ArtworkReplaced(prev models.ArtworkVersion, q *models.Quote, by actor.Actor) models.AuditLog {
	before := artworkPayload{
		Version:  prev.Version,
		URL:      prev.URL,
		FileName: prev.FileName,
		Status:   prev.Status,
	}
	return r.entry(q, models.AuditArtworkUpdated, by, before, artworkPayloadOf(q))
}

// ArtworkChanged records a change of the current artwork's review state or
// its removal.
func (r *Recorder) ArtworkChanged(before, after *models.Quote, by actor.Actor) models.AuditLog {
	return r.entry(after, models.AuditArtworkUpdated, by, artworkPayloadOf(before), artworkPayloadOf(after))
}

// ArtworkSent records artwork being sent to the customer for approval.
func (r *Recorder) ArtworkSent(q *models.Quote, recipient string, by actor.Actor) models.AuditLog {
	after := artworkPayloadOf(q)
	after.Recipient = recipient
	return r.entry(q, models.AuditArtworkSent, by, nil, after)
}

func (r *Recorder) entry(q *models.Quote, action models.AuditAction, by actor.Actor, before, after any) models.AuditLog {
	e := models.AuditLog{
		CreatedAt:   r.now(),
		QuoteID:     q.ID,
		QuoteNumber: q.QuoteNumber,
		Action:      action,
		Before:      toJSON(before),
		After:       toJSON(after),
	}
	switch a := by.(type) {
	case actor.Internal:
		id := a.ID
		e.ActorType = models.ActorInternal
		e.UserID = &id
		e.UserName = a.Name
		e.UserEmail = a.Email
	default:
		e.ActorType = models.ActorCustomer
	}
	return e
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func sameUint(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameItems(a, b []itemTuple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Quantity != b[i].Quantity || !a[i].UnitPrice.Equal(b[i].UnitPrice) {
			return false
		}
	}
	return true
}

// pricingChanged compares the user-entered parameters, not the computed
// discount, so recomputation never produces a false positive.
func pricingChanged(before, after *models.Quote) bool {
	return !before.DiscountValue.Equal(after.DiscountValue) ||
		!before.TaxRate.Equal(after.TaxRate) ||
		!before.Shipping.Equal(after.Shipping) ||
		before.DiscountType != after.DiscountType
}

func changedGeneralFields(before, after *models.Quote) []string {
	var fields []string
	if before.Title != after.Title {
		fields = append(fields, "title")
	}
	if before.Notes != after.Notes {
		fields = append(fields, "notes")
	}
	if before.InternalNotes != after.InternalNotes {
		fields = append(fields, "internalNotes")
	}
	if day(before.ValidUntil) != day(after.ValidUntil) {
		fields = append(fields, "validUntil")
	}
	if day(before.RequestedDelivery) != day(after.RequestedDelivery) {
		fields = append(fields, "requestedDelivery")
	}
	if before.ArtworkRequired != after.ArtworkRequired {
		fields = append(fields, "artworkRequired")
	}
	// Contact details of the same snapshot customer; a new customer is
	// reported as CUSTOMER_CHANGED instead.
	if before.CustomerID == nil && after.CustomerID == nil &&
		before.CustomerRef().Key() == after.CustomerRef().Key() {
		if before.CustomerPhone != after.CustomerPhone {
			fields = append(fields, "customerPhone")
		}
		if before.CustomerCompany != after.CustomerCompany {
			fields = append(fields, "customerCompany")
		}
	}
	return fields
}

// day renders a date at day granularity in UTC; nil becomes "".
func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dayLayout)
}

// Payloads

type statusPayload struct {
	Status models.QuoteStatus `json:"status"`
}

type ownerPayload struct {
	OwnerID *uint `json:"ownerId"`
}

type customerPayload struct {
	CustomerID *uint  `json:"customerId,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
}

func customerPayloadOf(q *models.Quote) customerPayload {
	p := customerPayload{CustomerID: q.CustomerID}
	if q.CustomerID == nil {
		p.Name = q.CustomerName
		p.Email = q.CustomerEmail
		p.Phone = q.CustomerPhone
		p.Company = q.CustomerCompany
	}
	return p
}

type itemTuple struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func itemTuples(items []models.LineItem) []itemTuple {
	out := make([]itemTuple, len(items))
	for i, it := range items {
		out[i] = itemTuple{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

type itemsPayload struct {
	Items    []itemTuple     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type pricingPayload struct {
	DiscountValue decimal.Decimal `json:"discountValue"`
	DiscountType  string          `json:"discountType"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
}

func pricingPayloadOf(q *models.Quote) pricingPayload {
	return pricingPayload{
		DiscountValue: q.DiscountValue,
		DiscountType:  string(q.DiscountType),
		TaxRate:       q.TaxRate,
		Shipping:      q.Shipping,
		Total:         q.Total,
	}
}

type generalPayload struct {
	Fields []string          `json:"fields"`
	Values map[string]string `json:"values"`
}

func generalPayloadOf(q *models.Quote, fields []string) generalPayload {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		switch f {
		case "title":
			values[f] = q.Title
		case "notes":
			values[f] = q.Notes
		case "internalNotes":
			values[f] = q.InternalNotes
		case "validUntil":
			values[f] = day(q.ValidUntil)
		case "requestedDelivery":
			values[f] = day(q.RequestedDelivery)
		case "artworkRequired":
			values[f] = strconv.FormatBool(q.ArtworkRequired)
		case "customerPhone":
			values[f] = q.CustomerPhone
		case "customerCompany":
			values[f] = q.CustomerCompany
		}
	}
	return generalPayload{Fields: fields, Values: values}
}

type artworkPayload struct {
	Version   int                  `json:"version"`
	URL       string               `json:"url,omitempty"`
	FileName  string               `json:"fileName,omitempty"`
	Status    models.ArtworkStatus `json:"status"`
	Notes     string               `json:"notes,omitempty"`
	Recipient string               `json:"recipient,omitempty"`
}

func artworkPayloadOf(q *models.Quote) artworkPayload {
	p := artworkPayload{Version: q.ArtworkVersion, Status: q.ArtworkDisposition()}
	if q.ArtworkURL != nil {
		p.URL = *q.ArtworkURL
	}
	if q.ArtworkFileName != nil {
		p.FileName = *q.ArtworkFileName
	}
	if q.ArtworkNotes != nil {
		p.Notes = *q.ArtworkNotes
	}
	return p
}
