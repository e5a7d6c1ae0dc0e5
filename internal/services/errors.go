package services

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/pricing"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/diewo77/go-quotes/validation"
)

// Kind classifies a service error for callers.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Machine readable error codes.
const (
	CodeQuoteNotFound     = "QUOTE_NOT_FOUND"
	CodeTokenNotFound     = "TOKEN_NOT_FOUND"
	CodeNoArtwork         = "NO_ARTWORK"
	CodeNoCustomerEmail   = "NO_CUSTOMER_EMAIL"
	CodeCustomerConflict  = "CUSTOMER_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeQuoteExpired      = "QUOTE_EXPIRED"
	CodeConcurrentUpdate  = "CONCURRENT_UPDATE"
	CodeValidation        = "VALIDATION_FAILED"
	CodeForbidden         = "FORBIDDEN"
)

// Error is the typed error returned by every service operation.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Violations validation.Violations
	Err        error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// KindOf returns the kind of err, or 0 for untyped errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func notFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func forbidden(err error) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "insufficient permissions", Err: err}
}

func invalid(v validation.Violations) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: "invalid input", Violations: v}
}

func invalidField(field, code string) *Error {
	return invalid(validation.Violations{field: code})
}

// translate maps store, model and pricing errors onto the taxonomy. Other
// errors pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var ie *pricing.InputError
	switch {
	case errors.As(err, &ie):
		return invalidField(ie.Field, ie.Code)
	case errors.Is(err, store.ErrNotFound):
		return notFound(CodeQuoteNotFound, "quote not found")
	case errors.Is(err, store.ErrStale):
		return &Error{Kind: KindConflict, Code: CodeConcurrentUpdate, Message: "quote was modified concurrently, retry", Err: err}
	case errors.Is(err, store.ErrCustomerNotFound):
		return invalidField("customer_id", "not_found")
	case errors.Is(err, models.ErrCustomerConflict):
		return conflict(CodeCustomerConflict, err.Error())
	}
	return fmt.Errorf("services: %w", err)
}
