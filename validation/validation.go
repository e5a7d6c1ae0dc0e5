// Package validation collects field-level input violations. A violation is a
// stable machine code (required, invalid_email...) keyed by field name, so
// clients can translate it.
package validation

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Violations maps a field name to its first violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records code for field unless the field already has a violation.
func (v Violations) Add(field, code string) {
	if _, ok := v[field]; !ok {
		v[field] = code
	}
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

// NotEmpty flags an empty list, e.g. a quote without line items.
func NotEmpty(field string, n int, v Violations) {
	if n == 0 {
		v.Add(field, "required")
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v.Add(field, "must_be_positive")
	}
}

// MaxLen counts runes, not bytes.
func MaxLen(field, value string, max int, v Violations) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, "too_long")
	}
}

// Email checks the shape local@domain.tld; delivery is not verified.
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t<>") ||
		!strings.Contains(value[at+1:], ".") {
		v.Add(field, "invalid_email")
	}
}

// URL accepts absolute http and https URLs only. Empty values are left to
// Required.
func URL(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.Add(field, "invalid_url")
	}
}
