package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Response states shown to customers.
const (
	ResponsePending  = "pending"
	ResponseApproved = "approved"
	ResponseDeclined = "declined"
)

// ApprovalGateway serves anonymous customers holding a quote or artwork
// token. The token is their only credential.
type ApprovalGateway struct {
	*engine
}

func NewApprovalGateway(d Deps) *ApprovalGateway {
	return &ApprovalGateway{engine: newEngine(d)}
}

// PublicItem is a line item as the customer sees it.
type PublicItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// PublicArtwork is the current artwork as the customer sees it.
type PublicArtwork struct {
	URL           string               `json:"url"`
	FileName      string               `json:"file_name,omitempty"`
	Version       int                  `json:"version"`
	Status        models.ArtworkStatus `json:"status"`
	Notes         string               `json:"notes,omitempty"`
	SentAt        *time.Time           `json:"sent_at,omitempty"`
	ResponseState string               `json:"response_state"`
	CanRespond    bool                 `json:"can_respond"`

	// CanApproveQuote offers approving the quote itself from the artwork page.
	CanApproveQuote bool `json:"can_approve_quote"`
}

// PublicQuoteView is everything a token holder may see. Internal notes,
// owner and staff identities are left out.
type PublicQuoteView struct {
	QuoteNumber     string             `json:"quote_number"`
	Title           string             `json:"title"`
	CustomerName    string             `json:"customer_name"`
	CustomerCompany string             `json:"customer_company,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Items           []PublicItem       `json:"items"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Discount        decimal.Decimal    `json:"discount"`
	TaxRate         decimal.Decimal    `json:"tax_rate"`
	Tax             decimal.Decimal    `json:"tax"`
	Shipping        decimal.Decimal    `json:"shipping"`
	Total           decimal.Decimal    `json:"total"`
	ValidUntil      *time.Time         `json:"valid_until,omitempty"`
	Status          models.QuoteStatus `json:"status"`
	ResponseState   string             `json:"response_state"`
	Expired         bool               `json:"expired"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	DeclinedAt      *time.Time         `json:"declined_at,omitempty"`
	Artwork         *PublicArtwork     `json:"artwork,omitempty"`
}

func quoteResponseState(q *models.Quote) string {
	switch q.Status {
	case models.QuoteStatusApproved:
		return ResponseApproved
	case models.QuoteStatusDeclined:
		return ResponseDeclined
	}
	return ResponsePending
}

func artworkResponseState(q *models.Quote) string {
	switch q.ArtworkDisposition() {
	case models.ArtworkStatusApproved:
		return ResponseApproved
	case models.ArtworkStatusDeclined:
		return ResponseDeclined
	}
	return ResponsePending
}

func quoteResolved(q *models.Quote) bool {
	return q.Status == models.QuoteStatusApproved || q.Status == models.QuoteStatusDeclined
}

// canRespondToArtwork is false once the artwork is decided or the quote is
// archived.
func canRespondToArtwork(q *models.Quote) bool {
	return q.HasArtwork() &&
		artworkResponseState(q) == ResponsePending &&
		q.ArtworkResponsePending() &&
		q.Status != models.QuoteStatusArchived
}

func canApproveFromArtwork(q *models.Quote, now time.Time) bool {
	return q.ArtworkDisposition() == models.ArtworkStatusApproved &&
		(q.Status == models.QuoteStatusArtworkPending || q.Status == models.QuoteStatusArtworkApproved) &&
		!q.IsExpired(now)
}

// NewPublicView builds the customer view of q at now.
func NewPublicView(q *models.Quote, now time.Time) *PublicQuoteView {
	v := &PublicQuoteView{
		QuoteNumber:   q.QuoteNumber,
		Title:         q.Title,
		CustomerName:  q.RecipientName(),
		Notes:         q.Notes,
		Items:         make([]PublicItem, len(q.Items)),
		Subtotal:      q.Subtotal,
		Discount:      q.Discount,
		TaxRate:       q.TaxRate,
		Tax:           q.Tax,
		Shipping:      q.Shipping,
		Total:         q.Total,
		ValidUntil:    q.ValidUntil,
		Status:        q.Status,
		ResponseState: quoteResponseState(q),
		Expired:       !quoteResolved(q) && q.IsExpired(now),
		SentAt:        q.SentAt,
		ApprovedAt:    q.ApprovedAt,
		DeclinedAt:    q.DeclinedAt,
	}
	if q.CustomerID != nil && q.Customer != nil {
		v.CustomerCompany = q.Customer.Company
	} else {
		v.CustomerCompany = q.CustomerCompany
	}
	for i, it := range q.Items {
		v.Items[i] = PublicItem{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
			Total:       it.Total,
		}
	}
	if q.HasArtwork() {
		v.Artwork = &PublicArtwork{
			URL:             deref(q.ArtworkURL),
			FileName:        deref(q.ArtworkFileName),
			Version:         q.ArtworkVersion,
			Status:          q.ArtworkDisposition(),
			Notes:           deref(q.ArtworkNotes),
			SentAt:          q.ArtworkSentAt,
			ResponseState:   artworkResponseState(q),
			CanRespond:      canRespondToArtwork(q),
			CanApproveQuote: canApproveFromArtwork(q, now),
		}
	}
	return v
}

func (g *ApprovalGateway) byAccessToken(ctx context.Context, token string) (*models.Quote, error) {
	q, err := g.store.GetByAccessToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(CodeTokenNotFound, "link is invalid")
	}
	return q, translate(err)
}

func (g *ApprovalGateway) byArtworkToken(ctx context.Context, token string) (*models.Quote, error) {
	q, err := g.store.GetByArtworkToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(CodeTokenNotFound, "link is invalid")
	}
	if err != nil {
		return nil, translate(err)
	}
	if !q.HasArtwork() {
		return nil, notFound(CodeNoArtwork, "no artwork on this quote")
	}
	return q, nil
}

// customerMutate runs a customer transition on the quote behind a token. A
// quote that disappeared in between reads as an invalid link.
func (g *ApprovalGateway) customerMutate(ctx context.Context, id uuid.UUID, action string, fn mutation) (*models.Quote, error) {
	q, err := g.mutate(ctx, id, actor.Customer{}, action, fn)
	var se *Error
	if errors.As(err, &se) && se.Code == CodeQuoteNotFound {
		return nil, notFound(CodeTokenNotFound, "link is invalid")
	}
	return q, err
}

// ResolveQuote returns the customer view behind a quote link.
func (g *ApprovalGateway) ResolveQuote(ctx context.Context, token string) (*PublicQuoteView, error) {
	q, err := g.byAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return NewPublicView(q, g.now()), nil
}

// RespondToQuote records the customer's decision on a sent quote. A quote
// that is already decided is returned as is.
func (g *ApprovalGateway) RespondToQuote(ctx context.Context, token string, approve bool) (*PublicQuoteView, error) {
	current, err := g.byAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	action := "customer_decline"
	if approve {
		action = "customer_approve"
	}

	q, err := g.customerMutate(ctx, current.ID, action, func(tx *store.Tx, _, q *models.Quote) ([]models.AuditLog, error) {
		if quoteResolved(q) {
			return nil, errUnchanged
		}
		now := tx.Now()
		if q.IsExpired(now) {
			return nil, conflict(CodeQuoteExpired, "this quote has expired")
		}
		if q.Status != models.QuoteStatusSent {
			return nil, conflict(CodeInvalidTransition, "quote is not awaiting a response")
		}
		if approve {
			q.Status = models.QuoteStatusApproved
			q.ApprovedAt = timePtr(now)
		} else {
			q.Status = models.QuoteStatusDeclined
			q.DeclinedAt = timePtr(now)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if !quoteResolved(current) && quoteResolved(q) {
		activity := notify.ActivityDeclined
		if q.Status == models.QuoteStatusApproved {
			activity = notify.ActivityApproved
		}
		g.track(ctx, q, activity, actor.Customer{}, nil, summary(q))
	}
	return NewPublicView(q, g.now()), nil
}

// ResolveArtwork returns the customer view behind an artwork link.
func (g *ApprovalGateway) ResolveArtwork(ctx context.Context, token string) (*PublicQuoteView, error) {
	q, err := g.byArtworkToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return NewPublicView(q, g.now()), nil
}

// RespondToArtwork records the customer's decision on the current artwork.
// A decision is final for that version: later responses return the view
// unchanged. The quote status is not touched.
func (g *ApprovalGateway) RespondToArtwork(ctx context.Context, token string, approve bool, notes string) (*PublicQuoteView, error) {
	current, err := g.byArtworkToken(ctx, token)
	if err != nil {
		return nil, err
	}
	action := "customer_artwork_decline"
	if approve {
		action = "customer_artwork_approve"
	}

	q, err := g.customerMutate(ctx, current.ID, action, func(tx *store.Tx, before, q *models.Quote) ([]models.AuditLog, error) {
		if !q.HasArtwork() {
			return nil, notFound(CodeNoArtwork, "no artwork on this quote")
		}
		if !canRespondToArtwork(q) {
			return nil, errUnchanged
		}
		now := tx.Now()
		if approve {
			q.ArtworkApprovedAt = timePtr(now)
			q.ArtworkStatus = models.ArtworkStatusApproved
		} else {
			q.ArtworkDeclinedAt = timePtr(now)
			q.ArtworkStatus = models.ArtworkStatusDeclined
			if n := strings.TrimSpace(notes); n != "" {
				q.ArtworkNotes = &n
			}
		}
		return []models.AuditLog{g.recorder.ArtworkChanged(before, q, actor.Customer{})}, nil
	})
	if err != nil {
		return nil, err
	}
	return NewPublicView(q, g.now()), nil
}

// ApproveQuoteFromArtwork lets the customer approve the quote itself from
// the artwork page once the artwork is approved.
func (g *ApprovalGateway) ApproveQuoteFromArtwork(ctx context.Context, token string) (*PublicQuoteView, error) {
	current, err := g.byArtworkToken(ctx, token)
	if err != nil {
		return nil, err
	}

	q, err := g.customerMutate(ctx, current.ID, "customer_approve_from_artwork", func(tx *store.Tx, _, q *models.Quote) ([]models.AuditLog, error) {
		if quoteResolved(q) {
			return nil, errUnchanged
		}
		now := tx.Now()
		if q.ArtworkDisposition() != models.ArtworkStatusApproved {
			return nil, conflict(CodeInvalidTransition, "artwork is not approved")
		}
		if q.IsExpired(now) {
			return nil, conflict(CodeQuoteExpired, "this quote has expired")
		}
		if q.Status != models.QuoteStatusArtworkPending && q.Status != models.QuoteStatusArtworkApproved {
			return nil, conflict(CodeInvalidTransition, "quote is not awaiting artwork approval")
		}
		q.Status = models.QuoteStatusApproved
		q.ApprovedAt = timePtr(now)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if !quoteResolved(current) && q.Status == models.QuoteStatusApproved {
		g.track(ctx, q, notify.ActivityApproved, actor.Customer{}, nil, summary(q))
	}
	return NewPublicView(q, g.now()), nil
}
