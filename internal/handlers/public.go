package handlers

import (
	"bytes"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/i18n"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/view"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var pageFS embed.FS

// NewPageRenderer returns the renderer of the customer pages.
func NewPageRenderer(dev bool) *view.Renderer {
	sub, err := fs.Sub(pageFS, "templates")
	if err != nil {
		panic(err)
	}
	r := view.New(sub)
	r.Dev = dev
	return r
}

// PublicHandler serves the customer side of quote and artwork links. The
// token in the path is the only credential. Browsers get HTML pages and
// form posts are redirected back to the page; API clients get JSON.
type PublicHandler struct {
	Gateway *services.ApprovalGateway
	Pages   *view.Renderer
	Site    notify.Site
	Log     zerolog.Logger
}

func NewPublicHandler(gw *services.ApprovalGateway, pages *view.Renderer, site notify.Site, log zerolog.Logger) *PublicHandler {
	return &PublicHandler{Gateway: gw, Pages: pages, Site: site, Log: log}
}

type publicPage struct {
	Title   string
	Site    notify.Site
	Token   string
	View    *services.PublicQuoteView
	Confirm string

	// CanRespond offers the approve / decline forms.
	CanRespond bool
}

func (h *PublicHandler) lang(r *http.Request) string {
	return i18n.LangFrom(r.Context())
}

func (h *PublicHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, p publicPage) {
	p.Site = h.Site
	var buf bytes.Buffer
	if err := h.Pages.Render(&buf, name, h.lang(r), p); err != nil {
		h.Log.Error().Err(err).Str("template", name).Msg("render customer page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	httpx.Private(w)
	httpx.HTML(w, status, &buf)
}

// fail answers a gateway error. Browsers see the invalid link page for
// unknown tokens and are sent back to the page for refused transitions,
// which then shows why.
func (h *PublicHandler) fail(w http.ResponseWriter, r *http.Request, back string, err error) {
	if httpx.WantsJSON(r) {
		writeError(w, r, h.Log, err)
		return
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		h.render(w, r, http.StatusNotFound, "invalid.html", publicPage{Title: i18n.T(h.lang(r), "page_link_invalid")})
	case errors.Is(err, services.ErrConflict) && r.Method == http.MethodPost:
		http.Redirect(w, r, back, http.StatusSeeOther)
	default:
		writeError(w, r, h.Log, err)
	}
}

func (h *PublicHandler) respond(w http.ResponseWriter, r *http.Request, back string, v *services.PublicQuoteView) {
	if httpx.WantsJSON(r) {
		httpx.Private(w)
		httpx.JSON(w, http.StatusOK, v)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// ViewQuote answers GET /q/{token}. ?response=approve|decline preselects the
// confirmation shown to the customer.
func (h *PublicHandler) ViewQuote(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	v, err := h.Gateway.ResolveQuote(r.Context(), token)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.Private(w)
		httpx.JSON(w, http.StatusOK, v)
		return
	}
	p := publicPage{
		Title:      i18n.Tf(h.lang(r), "page_quote_title", v.QuoteNumber),
		Token:      token,
		View:       v,
		CanRespond: v.Status == models.QuoteStatusSent && !v.Expired,
	}
	if c := r.URL.Query().Get("response"); c == "approve" || c == "decline" {
		p.Confirm = c
	}
	h.render(w, r, http.StatusOK, "quote.html", p)
}

func (h *PublicHandler) answerQuote(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.PathValue("token")
		back := "/q/" + url.PathEscape(token)
		v, err := h.Gateway.RespondToQuote(r.Context(), token, approve)
		if err != nil {
			h.fail(w, r, back, err)
			return
		}
		h.respond(w, r, back, v)
	}
}

// ApproveQuote answers POST /q/{token}/approve.
func (h *PublicHandler) ApproveQuote(w http.ResponseWriter, r *http.Request) {
	h.answerQuote(true)(w, r)
}

// DeclineQuote answers POST /q/{token}/decline.
func (h *PublicHandler) DeclineQuote(w http.ResponseWriter, r *http.Request) {
	h.answerQuote(false)(w, r)
}

// ViewArtwork answers GET /artwork/{token}.
func (h *PublicHandler) ViewArtwork(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	v, err := h.Gateway.ResolveArtwork(r.Context(), token)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.Private(w)
		httpx.JSON(w, http.StatusOK, v)
		return
	}
	h.render(w, r, http.StatusOK, "artwork.html", publicPage{
		Title:      i18n.Tf(h.lang(r), "page_artwork_title", v.QuoteNumber),
		Token:      token,
		View:       v,
		CanRespond: v.Artwork != nil && v.Artwork.CanRespond,
	})
}

type artworkAnswer struct {
	Notes string `json:"notes"`
}

func (h *PublicHandler) answerArtwork(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.PathValue("token")
		back := "/artwork/" + url.PathEscape(token)
		var in artworkAnswer
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if !decode(w, r, &in) {
				return
			}
		} else {
			in.Notes = r.FormValue("notes")
		}
		v, err := h.Gateway.RespondToArtwork(r.Context(), token, approve, in.Notes)
		if err != nil {
			h.fail(w, r, back, err)
			return
		}
		h.respond(w, r, back, v)
	}
}

// ApproveArtwork answers POST /artwork/{token}/approve.
func (h *PublicHandler) ApproveArtwork(w http.ResponseWriter, r *http.Request) {
	h.answerArtwork(true)(w, r)
}

// DeclineArtwork answers POST /artwork/{token}/decline with optional notes.
func (h *PublicHandler) DeclineArtwork(w http.ResponseWriter, r *http.Request) {
	h.answerArtwork(false)(w, r)
}

// ApproveQuoteFromArtwork answers POST /artwork/{token}/approve-quote.
func (h *PublicHandler) ApproveQuoteFromArtwork(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	back := "/artwork/" + url.PathEscape(token)
	v, err := h.Gateway.ApproveQuoteFromArtwork(r.Context(), token)
	if err != nil {
		h.fail(w, r, back, err)
		return
	}
	h.respond(w, r, back, v)
}
