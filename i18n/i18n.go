// Package i18n holds the fr/en message catalog used in customer-facing mail
// and validation messages. French is the default language.
package i18n

import (
	"context"
	"fmt"
	"strings"
)

const DefaultLang = "fr"

var messages = map[string]map[string]string{
	"fr": {
		"required":             "Requis",
		"invalid":              "Invalide",
		"invalid_email":        "Adresse e-mail invalide",
		"must_be_positive":     "Doit être positif",
		"must_not_be_negative": "Ne peut pas être négatif",
		"out_of_range":         "Hors limites",
		"not_found":            "Introuvable",

		"mail_greeting":     "Bonjour %s,",
		"mail_signature":    "L'équipe %s",
		"mail_contact":      "Une question ? Écrivez-nous à %s.",
		"quote_subject":     "Votre devis %s",
		"quote_intro":       "Veuillez trouver ci-dessous votre devis %s.",
		"quote_item":        "Article",
		"quote_qty":         "Qté",
		"quote_unit_price":  "Prix unitaire",
		"quote_line_total":  "Total",
		"quote_subtotal":    "Sous-total",
		"quote_discount":    "Remise",
		"quote_tax":         "TVA",
		"quote_shipping":    "Livraison",
		"quote_total":       "Total",
		"quote_valid_until": "Valable jusqu'au %s",
		"quote_approve":     "Accepter le devis",
		"quote_decline":     "Refuser le devis",
		"artwork_subject":   "Maquette à valider pour le devis %s",
		"artwork_intro":     "La version %d de votre maquette est prête pour le devis %s.",
		"artwork_review":    "Voir et valider la maquette",

		"page_quote_title":         "Devis %s",
		"page_quote_approved":      "Vous avez accepté ce devis. Merci !",
		"page_quote_declined":      "Vous avez refusé ce devis.",
		"page_quote_expired":       "Ce devis a expiré. Contactez-nous pour en obtenir un nouveau.",
		"page_confirm_approve":     "Confirmez-vous l'acceptation de ce devis ?",
		"page_confirm_decline":     "Confirmez-vous le refus de ce devis ?",
		"page_link_invalid":        "Ce lien n'est pas ou plus valide.",
		"page_artwork_title":       "Maquette du devis %s",
		"page_artwork_version":     "Version %d",
		"page_artwork_open":        "Ouvrir le fichier",
		"page_artwork_notes":       "Vos remarques (facultatif)",
		"page_artwork_approve":     "Valider la maquette",
		"page_artwork_decline":     "Demander des modifications",
		"page_artwork_approved":    "Vous avez validé cette maquette.",
		"page_artwork_declined":    "Vous avez demandé des modifications. Nous revenons vers vous rapidement.",
		"page_artwork_quote_offer": "Vous pouvez aussi accepter le devis dès maintenant.",
	},
	"en": {
		"required":             "Required",
		"invalid":              "Invalid",
		"invalid_email":        "Invalid email address",
		"must_be_positive":     "Must be positive",
		"must_not_be_negative": "Must not be negative",
		"out_of_range":         "Out of range",
		"not_found":            "Not found",

		"mail_greeting":     "Hello %s,",
		"mail_signature":    "The %s team",
		"mail_contact":      "Questions? Write to us at %s.",
		"quote_subject":     "Your quote %s",
		"quote_intro":       "Please find your quote %s below.",
		"quote_item":        "Item",
		"quote_qty":         "Qty",
		"quote_unit_price":  "Unit price",
		"quote_line_total":  "Total",
		"quote_subtotal":    "Subtotal",
		"quote_discount":    "Discount",
		"quote_tax":         "Tax",
		"quote_shipping":    "Shipping",
		"quote_total":       "Total",
		"quote_valid_until": "Valid until %s",
		"quote_approve":     "Approve quote",
		"quote_decline":     "Decline quote",
		"artwork_subject":   "Artwork ready for approval on quote %s",
		"artwork_intro":     "Version %d of your artwork for quote %s is ready.",
		"artwork_review":    "Review the artwork",

		"page_quote_title":         "Quote %s",
		"page_quote_approved":      "You approved this quote. Thank you!",
		"page_quote_declined":      "You declined this quote.",
		"page_quote_expired":       "This quote has expired. Contact us for a new one.",
		"page_confirm_approve":     "Do you confirm you approve this quote?",
		"page_confirm_decline":     "Do you confirm you decline this quote?",
		"page_link_invalid":        "This link is not valid anymore.",
		"page_artwork_title":       "Artwork for quote %s",
		"page_artwork_version":     "Version %d",
		"page_artwork_open":        "Open the file",
		"page_artwork_notes":       "Your remarks (optional)",
		"page_artwork_approve":     "Approve the artwork",
		"page_artwork_decline":     "Request changes",
		"page_artwork_approved":    "You approved this artwork.",
		"page_artwork_declined":    "You requested changes. We will get back to you shortly.",
		"page_artwork_quote_offer": "You can also approve the quote right away.",
	},
}

// DetectLanguage picks a supported language from an Accept-Language header.
// Anything but English falls back to French.
func DetectLanguage(acceptLanguage string) string {
	first := strings.TrimSpace(strings.SplitN(acceptLanguage, ",", 2)[0])
	tag := strings.ToLower(strings.SplitN(first, ";", 2)[0])
	if tag == "en" || strings.HasPrefix(tag, "en-") {
		return "en"
	}
	return DefaultLang
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := messages[lang]
	return ok
}

// T translates code. Unknown languages use French; unknown codes are
// returned as is.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Tf translates code and formats it with args.
func Tf(lang, code string, args ...any) string {
	return fmt.Sprintf(T(lang, code), args...)
}

type ctxKey struct{}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// LangFrom returns the language stored in ctx, or the default.
func LangFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultLang
}
