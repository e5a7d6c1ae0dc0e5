package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/diewo77/go-quotes/validation"
	"github.com/rs/zerolog"
)

// QuoteHandler serves the back-office quote API. Authorization is left to
// the service, which answers Forbidden for missing permissions.
type QuoteHandler struct {
	Quotes *services.QuoteService
	Log    zerolog.Logger
}

func NewQuoteHandler(quotes *services.QuoteService, log zerolog.Logger) *QuoteHandler {
	return &QuoteHandler{Quotes: quotes, Log: log}
}

// listFilter reads status, q, owner_id, limit and offset from the query.
func listFilter(r *http.Request) (store.ListFilter, validation.Violations) {
	q := r.URL.Query()
	f := store.ListFilter{
		Status: models.QuoteStatus(q.Get("status")),
		Search: q.Get("q"),
	}
	bad := validation.Violations{}
	if v := q.Get("owner_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			bad.Add("owner_id", "invalid")
		} else {
			owner := uint(id)
			f.OwnerID = &owner
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				bad.Add(name, "invalid")
				continue
			}
			*dst = n
		}
	}
	return f, bad
}

// List answers GET /api/quotes.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	f, bad := listFilter(r)
	if len(bad) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_query", bad)
		return
	}
	quotes, total, err := h.Quotes.List(r.Context(), currentActor(r), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quotes": quotes,
		"total":  total,
		"offset": f.Offset,
	})
}

// Create answers POST /api/quotes.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateInput
	if !decode(w, r, &in) {
		return
	}
	q, err := h.Quotes.Create(r.Context(), currentActor(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

// View answers GET /api/quotes/{id}.
func (h *QuoteHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.Quotes.Get(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Update answers PATCH /api/quotes/{id}. Absent fields are left untouched;
// "items" replaces the whole line item set.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.QuotePatch
	if !decode(w, r, &patch) {
		return
	}
	q, err := h.Quotes.Update(r.Context(), currentActor(r), id, patch)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Delete answers DELETE /api/quotes/{id}.
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Quotes.Delete(r.Context(), currentActor(r), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send answers POST /api/quotes/{id}/send. An undelivered email is still a
// 200; the body says so.
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Quotes.Send(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Archive answers POST /api/quotes/{id}/archive.
func (h *QuoteHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.Quotes.Archive(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Audit answers GET /api/quotes/{id}/audit, newest first.
func (h *QuoteHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.Quotes.ListAuditEntries(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
