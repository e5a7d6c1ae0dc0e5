package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/opt"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/pricing"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/diewo77/go-quotes/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteService is the staff-facing quote state machine.
type QuoteService struct {
	*engine
}

func NewQuoteService(d Deps) *QuoteService {
	return &QuoteService{engine: newEngine(d)}
}

// CreateInput is the payload of Create. Either CustomerID or the customer
// snapshot fields are given, not both.
type CreateInput struct {
	CustomerID      *uint  `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerCompany string `json:"customer_company"`

	Title             string     `json:"title"`
	Notes             string     `json:"notes"`
	InternalNotes     string     `json:"internal_notes"`
	ValidUntil        *time.Time `json:"valid_until"`
	RequestedDelivery *time.Time `json:"requested_delivery"`
	OwnerID           *uint      `json:"owner_id"`
	ArtworkRequired   bool       `json:"artwork_required"`

	DiscountValue decimal.Decimal      `json:"discount_value"`
	DiscountType  pricing.DiscountType `json:"discount_type"`
	TaxRate       decimal.Decimal      `json:"tax_rate"`
	Shipping      decimal.Decimal      `json:"shipping"`

	Items []models.LineItem `json:"items"`
}

func (in CreateInput) snapshot() models.CustomerSnapshot {
	return models.CustomerSnapshot{
		Name:    strings.TrimSpace(in.CustomerName),
		Email:   strings.TrimSpace(in.CustomerEmail),
		Phone:   strings.TrimSpace(in.CustomerPhone),
		Company: strings.TrimSpace(in.CustomerCompany),
	}
}

func validateItems(items []models.LineItem, v validation.Violations) {
	validation.NotEmpty("items", len(items), v)
	for i, it := range items {
		validation.Required(fmt.Sprintf("items[%d].name", i), it.Name, v)
		validation.PositiveInt(fmt.Sprintf("items[%d].quantity", i), it.Quantity, v)
	}
}

// Create opens a new PENDING quote with its initial line items and pricing.
func (s *QuoteService) Create(ctx context.Context, who actor.Internal, in CreateInput) (*models.Quote, error) {
	if err := s.authorize(ctx, who, gate.ActionCreate); err != nil {
		return nil, err
	}

	snap := in.snapshot()
	if in.CustomerID != nil && snap != (models.CustomerSnapshot{}) {
		return nil, conflict(CodeCustomerConflict, models.ErrCustomerConflict.Error())
	}

	v := validation.Violations{}
	var cust *models.Customer
	if in.CustomerID != nil {
		c, err := s.store.Customer(ctx, *in.CustomerID)
		switch {
		case errors.Is(err, store.ErrCustomerNotFound):
			v.Add("customer_id", "not_found")
		case err != nil:
			return nil, translate(err)
		}
		cust = c
	} else {
		validation.Required("customer_name", snap.Name, v)
		validation.Required("customer_email", snap.Email, v)
		if snap.Email != "" {
			validation.Email("customer_email", snap.Email, v)
		}
	}
	validateItems(in.Items, v)
	if !v.Empty() {
		return nil, invalid(v)
	}

	q := &models.Quote{
		Title:             strings.TrimSpace(in.Title),
		Notes:             in.Notes,
		InternalNotes:     in.InternalNotes,
		ValidUntil:        in.ValidUntil,
		RequestedDelivery: in.RequestedDelivery,
		OwnerID:           in.OwnerID,
		ArtworkRequired:   in.ArtworkRequired,
		DiscountValue:     in.DiscountValue,
		DiscountType:      in.DiscountType,
		TaxRate:           in.TaxRate,
		Shipping:          in.Shipping,
		Status:            models.QuoteStatusPending,
		ArtworkVersion:    1,
		ArtworkStatus:     models.ArtworkStatusNone,
	}
	if q.DiscountType == "" {
		q.DiscountType = pricing.DiscountFixed
	}
	if cust != nil {
		q.SetCustomer(models.LinkedCustomer{ID: cust.ID})
	} else {
		q.SetCustomer(snap)
	}
	q.Items = make([]models.LineItem, len(in.Items))
	for i, it := range in.Items {
		it.ID = 0
		it.Name = strings.TrimSpace(it.Name)
		q.Items[i] = it
	}
	if err := q.Reprice(); err != nil {
		return nil, translate(err)
	}

	if err := s.store.Create(ctx, q); err != nil {
		return nil, translate(err)
	}
	q.Customer = cust

	s.metrics.Transition("create")
	s.log.Info().
		Str("quote_id", q.ID.String()).
		Str("quote_number", q.QuoteNumber).
		Str("action", "create").
		Str("actor", who.Label()).
		Msg("quote created")
	s.track(ctx, q, notify.ActivityCreated, who, nil, summary(q))
	return q, nil
}

// Get loads one quote.
func (s *QuoteService) Get(ctx context.Context, who actor.Internal, id uuid.UUID) (*models.Quote, error) {
	if err := s.authorize(ctx, who, gate.ActionView); err != nil {
		return nil, err
	}
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

// List returns a page of quotes and the total number matching f.
func (s *QuoteService) List(ctx context.Context, who actor.Internal, f store.ListFilter) ([]models.Quote, int64, error) {
	if err := s.authorize(ctx, who, gate.ActionList); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalidField("status", "invalid")
	}
	quotes, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, translate(err)
	}
	return quotes, total, nil
}

// canTransition reports whether staff may move a quote from one status to
// another. Decided quotes can only be archived; archived quotes are frozen.
func canTransition(from, to models.QuoteStatus) bool {
	switch {
	case from == to:
		return true
	case from == models.QuoteStatusArchived:
		return false
	case from == models.QuoteStatusApproved, from == models.QuoteStatusDeclined:
		return to == models.QuoteStatusArchived
	}
	return true
}

// stampStatus sets the lifecycle timestamp belonging to the current status
// if it is not set yet.
func stampStatus(q *models.Quote, now time.Time) {
	switch q.Status {
	case models.QuoteStatusSent:
		if q.SentAt == nil {
			q.SentAt = timePtr(now)
		}
	case models.QuoteStatusApproved:
		if q.ApprovedAt == nil {
			q.ApprovedAt = timePtr(now)
		}
	case models.QuoteStatusDeclined:
		if q.DeclinedAt == nil {
			q.DeclinedAt = timePtr(now)
		}
	}
}

// Update applies a partial change. Pricing is recomputed when items or a
// pricing parameter are supplied; any validation failure rejects the whole
// patch.
func (s *QuoteService) Update(ctx context.Context, who actor.Internal, id uuid.UUID, patch models.QuotePatch) (*models.Quote, error) {
	if err := s.authorize(ctx, who, gate.ActionUpdate); err != nil {
		return nil, err
	}
	if err := patch.CheckCustomer(); err != nil {
		return nil, translate(err)
	}
	if to, ok := patch.Status.Get(); ok {
		if !to.Valid() {
			return nil, invalidField("status", "invalid")
		}
		if to == models.QuoteStatusArchived {
			if err := s.authorize(ctx, who, policy.ActionArchive); err != nil {
				return nil, err
			}
		}
	}
	v := validation.Violations{}
	if email, ok := patch.CustomerEmail.Get(); ok && strings.TrimSpace(email) != "" {
		validation.Email("customer_email", email, v)
	}
	if items, ok := patch.Items.Get(); ok {
		validateItems(items, v)
	}
	if !v.Empty() {
		return nil, invalid(v)
	}

	q, err := s.mutate(ctx, id, who, "update", func(tx *store.Tx, before, q *models.Quote) ([]models.AuditLog, error) {
		var cust *models.Customer
		if cid, ok := patch.CustomerID.Get(); ok && cid != nil {
			c, err := tx.Customer(*cid)
			if err != nil {
				return nil, err
			}
			cust = c
		}
		if err := patch.ApplyTo(q); err != nil {
			return nil, err
		}
		if cust != nil {
			q.Customer = cust
		}
		if snap, ok := q.CustomerRef().(models.CustomerSnapshot); ok && !snap.Complete() {
			cv := validation.Violations{}
			validation.Required("customer_name", snap.Name, cv)
			validation.Required("customer_email", snap.Email, cv)
			return nil, invalid(cv)
		}
		if q.Status != before.Status {
			if !canTransition(before.Status, q.Status) {
				return nil, conflict(CodeInvalidTransition,
					fmt.Sprintf("cannot move quote from %s to %s", before.Status, q.Status))
			}
			stampStatus(q, tx.Now())
		}
		if patch.TouchesPricing() {
			if err := q.Reprice(); err != nil {
				return nil, err
			}
		}
		if patch.Items.Set {
			if err := tx.ReplaceLineItems(q); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.track(ctx, q, notify.ActivityUpdated, who, nil, summary(q))
	return q, nil
}

// ReplaceLineItems swaps the whole item set and reprices.
func (s *QuoteService) ReplaceLineItems(ctx context.Context, who actor.Internal, id uuid.UUID, items []models.LineItem) (*models.Quote, error) {
	return s.Update(ctx, who, id, models.QuotePatch{Items: opt.Of(items)})
}

// Archive ends the lifecycle of a quote.
func (s *QuoteService) Archive(ctx context.Context, who actor.Internal, id uuid.UUID) (*models.Quote, error) {
	if err := s.authorize(ctx, who, policy.ActionArchive); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, who, "archive", func(_ *store.Tx, _, q *models.Quote) ([]models.AuditLog, error) {
		if q.Status == models.QuoteStatusArchived {
			return nil, errUnchanged
		}
		q.Status = models.QuoteStatusArchived
		return nil, nil
	})
}

// Delete hard-deletes a quote with its items and artwork history. The audit
// trail is kept.
func (s *QuoteService) Delete(ctx context.Context, who actor.Internal, id uuid.UUID) error {
	if err := s.authorize(ctx, who, gate.ActionDelete); err != nil {
		return err
	}
	q, err := s.store.Delete(ctx, id)
	if err != nil {
		return translate(err)
	}
	s.metrics.Transition("delete")
	s.log.Info().
		Str("quote_id", q.ID.String()).
		Str("quote_number", q.QuoteNumber).
		Str("action", "delete").
		Str("actor", who.Label()).
		Msg("quote deleted")
	s.track(ctx, q, notify.ActivityDeleted, who, summary(q), nil)
	return nil
}

// SendResult reports a Send. Delivered is false when the email could not be
// dispatched; the quote then keeps its status.
type SendResult struct {
	Quote     *models.Quote `json:"quote"`
	Delivered bool          `json:"delivered"`
	MessageID string        `json:"message_id,omitempty"`
	Message   string        `json:"message"`
}

func checkSendable(q *models.Quote) error {
	if q.Status.IsTerminal() {
		return conflict(CodeInvalidTransition, fmt.Sprintf("cannot send a quote in status %s", q.Status))
	}
	if q.RecipientEmail() == "" {
		return conflict(CodeNoCustomerEmail, "quote has no customer email")
	}
	return nil
}

// Send emails the priced quote with approve and decline links. The access
// token is created on first send and reused afterwards. Only a delivered
// email moves the quote to SENT.
func (s *QuoteService) Send(ctx context.Context, who actor.Internal, id uuid.UUID) (*SendResult, error) {
	if err := s.authorize(ctx, who, policy.ActionSend); err != nil {
		return nil, err
	}

	prepared, err := s.store.Update(ctx, id, func(tx *store.Tx, q *models.Quote) error {
		if err := checkSendable(q); err != nil {
			return err
		}
		if q.AccessToken != nil && *q.AccessToken != "" {
			return nil
		}
		if err := ensureToken(&q.AccessToken); err != nil {
			return err
		}
		return tx.SaveQuote(q)
	})
	if err != nil {
		return nil, translate(err)
	}

	token := *prepared.AccessToken
	res := s.dispatch(ctx, "quote", prepared, token, func() (notify.Message, error) {
		return notify.RenderQuote(s.site, prepared, s.quoteURL(token))
	})
	if !res.Success {
		return &SendResult{
			Quote:     prepared,
			Delivered: false,
			Message:   "quote saved, but the email could not be delivered: " + res.Err.Error(),
		}, nil
	}

	q, err := s.mutate(ctx, id, who, "send", func(tx *store.Tx, _, q *models.Quote) ([]models.AuditLog, error) {
		if q.Status.IsTerminal() {
			return nil, conflict(CodeInvalidTransition, fmt.Sprintf("quote became %s while sending", q.Status))
		}
		q.Status = models.QuoteStatusSent
		q.SentAt = timePtr(tx.Now())
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.track(ctx, q, notify.ActivitySent, who, nil, summary(q))
	return &SendResult{
		Quote:     q,
		Delivered: true,
		MessageID: res.MessageID,
		Message:   "quote sent to " + q.RecipientEmail(),
	}, nil
}

// ListAuditEntries returns the audit trail, newest first. Entries of deleted
// quotes remain readable.
func (s *QuoteService) ListAuditEntries(ctx context.Context, who actor.Internal, id uuid.UUID) ([]models.AuditLog, error) {
	if err := s.authorize(ctx, who, gate.ActionView); err != nil {
		return nil, err
	}
	entries, err := s.store.AuditEntries(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

// ListArtworkVersions returns superseded artwork, highest version first.
func (s *QuoteService) ListArtworkVersions(ctx context.Context, who actor.Internal, id uuid.UUID) ([]models.ArtworkVersion, error) {
	if err := s.authorize(ctx, who, gate.ActionView); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, translate(err)
	}
	versions, err := s.store.ArtworkVersions(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return versions, nil
}
