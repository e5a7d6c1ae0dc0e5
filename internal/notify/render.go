package notify

import (
	"bytes"
	"embed"
	"io/fs"

	"github.com/diewo77/go-quotes/i18n"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var renderer = newRenderer()

func newRenderer() *view.Renderer {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return view.New(sub)
}

// Site is the read-only shop identity printed in customer mail.
type Site struct {
	Name         string
	ContactEmail string
	Lang         string
}

func (s Site) lang() string {
	if s.Lang == "" {
		return i18n.DefaultLang
	}
	return s.Lang
}

type quoteMail struct {
	Subject      string
	CustomerName string
	Site         Site
	Quote        *models.Quote
	ApproveURL   string
	DeclineURL   string
}

type artworkMail struct {
	Subject      string
	CustomerName string
	Site         Site
	Quote        *models.Quote
	ReviewURL    string
}

// RenderQuote builds the priced quote mail. link is the customer's quote
// page; approve and decline land on it with the response preselected.
func RenderQuote(site Site, q *models.Quote, link string) (Message, error) {
	lang := site.lang()
	data := quoteMail{
		Subject:      i18n.Tf(lang, "quote_subject", q.QuoteNumber),
		CustomerName: q.RecipientName(),
		Site:         site,
		Quote:        q,
		ApproveURL:   link + "?response=approve",
		DeclineURL:   link + "?response=decline",
	}
	var buf bytes.Buffer
	if err := renderer.Render(&buf, "quote.html", lang, data); err != nil {
		return Message{}, err
	}
	return Message{To: q.RecipientEmail(), Subject: data.Subject, HTMLBody: buf.String()}, nil
}

// RenderArtwork builds the artwork review mail.
func RenderArtwork(site Site, q *models.Quote, link string) (Message, error) {
	lang := site.lang()
	data := artworkMail{
		Subject:      i18n.Tf(lang, "artwork_subject", q.QuoteNumber),
		CustomerName: q.RecipientName(),
		Site:         site,
		Quote:        q,
		ReviewURL:    link,
	}
	var buf bytes.Buffer
	if err := renderer.Render(&buf, "artwork.html", lang, data); err != nil {
		return Message{}, err
	}
	return Message{To: q.RecipientEmail(), Subject: data.Subject, HTMLBody: buf.String()}, nil
}
