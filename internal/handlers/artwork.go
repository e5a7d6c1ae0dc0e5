package handlers

import (
	"net/http"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/services"
)

// UploadArtwork answers POST /api/quotes/{id}/artwork with
// {"url": ..., "file_name": ...}. The file itself lives elsewhere.
func (h *QuoteHandler) UploadArtwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in services.ArtworkInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Quotes.UploadArtwork(r.Context(), currentActor(r), id, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// SendArtwork answers POST /api/quotes/{id}/artwork/send.
func (h *QuoteHandler) SendArtwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Quotes.SendArtworkForApproval(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// RemoveArtwork answers DELETE /api/quotes/{id}/artwork.
func (h *QuoteHandler) RemoveArtwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.Quotes.RemoveArtwork(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// ArtworkVersions answers GET /api/quotes/{id}/artwork/versions.
func (h *QuoteHandler) ArtworkVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	versions, err := h.Quotes.ListArtworkVersions(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"versions": versions})
}
