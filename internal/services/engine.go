// Package services implements the quote lifecycle: the staff-facing state
// machine, the artwork ledger and the token-gated customer gateway.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/audit"
	"github.com/diewo77/go-quotes/internal/logger"
	"github.com/diewo77/go-quotes/internal/metrics"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mailer dispatches one email and reports the outcome.
type Mailer interface {
	Send(ctx context.Context, msg notify.Message) notify.Result
}

// ActivitySink records coarse activity feed events. It must not fail the
// caller.
type ActivitySink interface {
	Track(ctx context.Context, entry models.ActivityLog)
}

// Authorizer decides whether a staff member may perform an action on quotes.
type Authorizer interface {
	Authorize(ctx context.Context, who actor.Internal, action gate.Action) error
}

// Deps wires the services to their collaborators.
type Deps struct {
	Store    *store.QuoteStore
	Gate     Authorizer
	Mailer   Mailer
	Activity ActivitySink
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// BaseURL prefixes customer links, without trailing slash.
	BaseURL string
	Site    notify.Site
	Now     func() time.Time
}

// errUnchanged aborts a mutation without writing; the current quote is
// returned to the caller as the result.
var errUnchanged = errors.New("unchanged")

// mutation changes q in place. before is the snapshot taken before it ran.
// The returned entries are appended to the field diff.
type mutation func(tx *store.Tx, before, q *models.Quote) ([]models.AuditLog, error)

type engine struct {
	store    *store.QuoteStore
	gate     Authorizer
	mailer   Mailer
	activity ActivitySink
	metrics  *metrics.Metrics
	log      zerolog.Logger
	baseURL  string
	site     notify.Site
	now      func() time.Time
	recorder *audit.Recorder
}

func newEngine(d Deps) *engine {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	mailer := d.Mailer
	if mailer == nil {
		mailer = notify.LogMailer{Logger: d.Logger}
	}
	return &engine{
		store:    d.Store,
		gate:     d.Gate,
		mailer:   mailer,
		activity: d.Activity,
		metrics:  d.Metrics,
		log:      d.Logger,
		baseURL:  strings.TrimRight(d.BaseURL, "/"),
		site:     d.Site,
		now:      now,
		recorder: audit.NewRecorder(now),
	}
}

func (e *engine) authorize(ctx context.Context, who actor.Internal, action gate.Action) error {
	if e.gate == nil {
		return forbidden(errors.New("no authorizer configured"))
	}
	if err := e.gate.Authorize(ctx, who, action); err != nil {
		return forbidden(err)
	}
	return nil
}

// mutate runs fn on a fresh copy of the quote inside a store transaction,
// saves the result and appends the audit entries for it. An audit batch that
// fails to insert is logged and counted; the mutation still commits.
func (e *engine) mutate(ctx context.Context, id uuid.UUID, by actor.Actor, action string, fn mutation) (*models.Quote, error) {
	var (
		before   *models.Quote
		entries  []models.AuditLog
		auditErr error
		noop     bool
	)
	q, err := e.store.Update(ctx, id, func(tx *store.Tx, q *models.Quote) error {
		entries, auditErr, noop = nil, nil, false
		before = q.Clone()
		extra, err := fn(tx, before, q)
		if errors.Is(err, errUnchanged) {
			noop = true
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.SaveQuote(q); err != nil {
			return err
		}
		entries = append(e.recorder.Diff(before, q, by), extra...)
		auditErr = tx.AppendAudit(entries)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if noop {
		return q, nil
	}

	if auditErr != nil {
		e.metrics.AuditWriteFailed()
		actions := make([]string, len(entries))
		for i, en := range entries {
			actions[i] = string(en.Action)
		}
		e.log.Warn().Err(auditErr).
			Str("quote_id", q.ID.String()).
			Str("quote_number", q.QuoteNumber).
			Str("action", action).
			Strs("audit_actions", actions).
			Msg("audit entries lost; quote change committed")
	}
	e.metrics.Transition(action)
	e.log.Info().
		Str("quote_id", q.ID.String()).
		Str("quote_number", q.QuoteNumber).
		Str("action", action).
		Str("actor", by.Label()).
		Str("status", string(q.Status)).
		Int("audit_entries", len(entries)).
		Msg("quote transition")
	return q, nil
}

func (e *engine) track(ctx context.Context, q *models.Quote, activity string, by actor.Actor, before, after any) {
	if e.activity == nil {
		return
	}
	entry := models.ActivityLog{
		EntityType:   "quote",
		EntityID:     q.ID.String(),
		ActivityType: activity,
		Before:       notify.Snapshot(before),
		After:        notify.Snapshot(after),
	}
	if in, ok := by.(actor.Internal); ok {
		id := in.ID
		entry.ActorID = &id
	}
	e.activity.Track(ctx, entry)
}

// dispatch renders and sends one customer email, then reports the outcome
// through logs and metrics. It never fails the caller.
func (e *engine) dispatch(ctx context.Context, kind string, q *models.Quote, token string, render func() (notify.Message, error)) notify.Result {
	var res notify.Result
	msg, err := render()
	if err != nil {
		res = notify.Result{Err: fmt.Errorf("render %s mail: %w", kind, err)}
	} else {
		res = e.mailer.Send(ctx, msg)
	}
	if !res.Success && res.Err == nil {
		res.Err = errors.New("mailer reported failure")
	}
	e.metrics.EmailDispatched(kind, res.Success)

	var ev *zerolog.Event
	if res.Success {
		ev = e.log.Info()
	} else {
		ev = e.log.Warn().Err(res.Err)
	}
	ev.Str("quote_id", q.ID.String()).
		Str("quote_number", q.QuoteNumber).
		Str("kind", kind).
		Str("token_prefix", logger.TokenPrefix(token)).
		Str("message_id", res.MessageID).
		Bool("delivered", res.Success).
		Msg("customer email dispatch")
	return res
}

func (e *engine) quoteURL(token string) string {
	return e.baseURL + "/q/" + token
}

func (e *engine) artworkURL(token string) string {
	return e.baseURL + "/artwork/" + token
}

// summary is the activity feed payload for a quote.
func summary(q *models.Quote) map[string]any {
	return map[string]any{
		"quote_number": q.QuoteNumber,
		"status":       q.Status,
		"total":        q.Total.StringFixed(2),
		"customer":     q.RecipientName(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timePtr(t time.Time) *time.Time { return &t }
