package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/diewo77/go-quotes/validation"
	"github.com/google/uuid"
)

// ArtworkInput describes a file already stored elsewhere.
type ArtworkInput struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

// ArtworkResult carries the quote after an artwork operation and the
// customer review link.
type ArtworkResult struct {
	Quote     *models.Quote `json:"quote"`
	ReviewURL string        `json:"review_url,omitempty"`

	// Delivered is only meaningful after SendArtworkForApproval.
	Delivered bool   `json:"delivered"`
	Message   string `json:"message,omitempty"`
}

// UploadArtwork attaches a new artwork file. Existing artwork is archived as
// a version with the disposition it had reached, and the new file starts
// unreviewed.
func (s *QuoteService) UploadArtwork(ctx context.Context, who actor.Internal, id uuid.UUID, in ArtworkInput) (*ArtworkResult, error) {
	if err := s.authorize(ctx, who, policy.ActionArtwork); err != nil {
		return nil, err
	}
	in.URL = strings.TrimSpace(in.URL)
	in.FileName = strings.TrimSpace(in.FileName)
	v := validation.Violations{}
	validation.Required("url", in.URL, v)
	validation.URL("url", in.URL, v)
	validation.MaxLen("url", in.URL, 1024, v)
	validation.MaxLen("file_name", in.FileName, 255, v)
	if !v.Empty() {
		return nil, invalid(v)
	}

	q, err := s.mutate(ctx, id, who, "artwork_upload", func(tx *store.Tx, _, q *models.Quote) ([]models.AuditLog, error) {
		if q.Status == models.QuoteStatusArchived {
			return nil, conflict(CodeInvalidTransition, "quote is archived")
		}

		var prev *models.ArtworkVersion
		if q.HasArtwork() {
			old := models.SnapshotArtwork(q)
			replacer := who.ID
			old.ReplacedByID = &replacer
			old.ReplacedBy = who.Label()
			if err := tx.AppendArtworkVersion(&old); err != nil {
				return nil, err
			}
			prev = &old
			q.ArtworkVersion++
		} else if q.ArtworkVersion < 1 {
			q.ArtworkVersion = 1
		}

		url := in.URL
		q.ArtworkURL = &url
		q.ArtworkFileName = nil
		if in.FileName != "" {
			name := in.FileName
			q.ArtworkFileName = &name
		}
		uploader := who.ID
		q.ArtworkUploadedByID = &uploader
		q.ArtworkSentAt = nil
		q.ArtworkApprovedAt = nil
		q.ArtworkDeclinedAt = nil
		q.ArtworkNotes = nil
		q.ArtworkStatus = models.ArtworkStatusPending
		if err := ensureToken(&q.ArtworkToken); err != nil {
			return nil, err
		}
		if q.Status.IsArtworkState() {
			q.Status = models.QuoteStatusPending
		}

		if prev != nil {
			return []models.AuditLog{s.recorder.ArtworkReplaced(*prev, q, who)}, nil
		}
		return []models.AuditLog{s.recorder.ArtworkUploaded(q, who)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ArtworkResult{Quote: q, ReviewURL: s.artworkURL(*q.ArtworkToken)}, nil
}

// SendArtworkForApproval asks the customer to review the current artwork.
// The state change commits before the email goes out; a failed email is
// reported but not rolled back.
func (s *QuoteService) SendArtworkForApproval(ctx context.Context, who actor.Internal, id uuid.UUID) (*ArtworkResult, error) {
	if err := s.authorize(ctx, who, policy.ActionArtwork); err != nil {
		return nil, err
	}

	q, err := s.mutate(ctx, id, who, "artwork_send", func(tx *store.Tx, _, q *models.Quote) ([]models.AuditLog, error) {
		if !q.HasArtwork() || deref(q.ArtworkToken) == "" {
			return nil, conflict(CodeNoArtwork, "quote has no artwork to send")
		}
		recipient := q.RecipientEmail()
		if recipient == "" {
			return nil, conflict(CodeNoCustomerEmail, "quote has no customer email")
		}
		if q.Status.IsTerminal() {
			return nil, conflict(CodeInvalidTransition, fmt.Sprintf("cannot send artwork for a quote in status %s", q.Status))
		}

		q.ArtworkSentAt = timePtr(tx.Now())
		q.ArtworkApprovedAt = nil
		q.ArtworkDeclinedAt = nil
		q.ArtworkNotes = nil
		q.ArtworkStatus = models.ArtworkStatusSent
		if q.Status != models.QuoteStatusArtworkPending {
			q.Status = models.QuoteStatusArtworkPending
		}
		return []models.AuditLog{s.recorder.ArtworkSent(q, recipient, who)}, nil
	})
	if err != nil {
		return nil, err
	}

	token := *q.ArtworkToken
	link := s.artworkURL(token)
	res := s.dispatch(ctx, "artwork", q, token, func() (notify.Message, error) {
		return notify.RenderArtwork(s.site, q, link)
	})
	out := &ArtworkResult{Quote: q, ReviewURL: link, Delivered: res.Success}
	if res.Success {
		out.Message = "artwork sent to " + q.RecipientEmail()
	} else {
		out.Message = "artwork marked as sent, but the email could not be delivered: " + res.Err.Error()
	}
	return out, nil
}

// RemoveArtwork clears the current artwork. Archived versions are kept.
func (s *QuoteService) RemoveArtwork(ctx context.Context, who actor.Internal, id uuid.UUID) (*models.Quote, error) {
	if err := s.authorize(ctx, who, policy.ActionRemoveArtwork); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, who, "artwork_remove", func(_ *store.Tx, before, q *models.Quote) ([]models.AuditLog, error) {
		if !q.HasArtwork() && q.ArtworkToken == nil && q.ArtworkVersion == 1 {
			return nil, errUnchanged
		}
		q.ArtworkURL = nil
		q.ArtworkFileName = nil
		q.ArtworkToken = nil
		q.ArtworkVersion = 1
		q.ArtworkStatus = models.ArtworkStatusNone
		q.ArtworkUploadedByID = nil
		q.ArtworkSentAt = nil
		q.ArtworkApprovedAt = nil
		q.ArtworkDeclinedAt = nil
		q.ArtworkNotes = nil
		if q.Status.IsArtworkState() {
			q.Status = models.QuoteStatusPending
		}
		return []models.AuditLog{s.recorder.ArtworkChanged(before, q, who)}, nil
	})
}
