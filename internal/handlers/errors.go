package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func statusFor(k services.Kind) int {
	switch k {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders a service error as {"error": code, "details": ...}.
// Untyped errors are logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var se *services.Error
	if errors.As(err, &se) {
		var details any = se.Message
		if len(se.Violations) > 0 {
			details = se.Violations
		}
		httpx.JSONError(w, statusFor(se.Kind), se.Code, details)
		return
	}
	log.Error().Err(err).Str("method", r.Method).Str("route", r.Pattern).Msg("request failed")
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}

// pathID parses the {id} path value. It answers 400 and returns false when
// it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.JSONError(w, status, "invalid_json", err.Error())
		return false
	}
	return true
}
