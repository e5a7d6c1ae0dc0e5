package gate

import (
	"errors"
	"fmt"
)

// ErrUnauthorized matches every denial returned by Gate.Authorize.
var ErrUnauthorized = errors.New("unauthorized")

// Denial reasons.
const (
	ReasonAnonymous    = "anonymous"
	ReasonLookupFailed = "profile lookup failed"
	ReasonNoProfile    = "no profile"
	ReasonNotGranted   = "not granted"
)

// DeniedError describes a refused permission check.
type DeniedError struct {
	Permission Permission
	Profile    string // empty when no profile was resolved
	Reason     string
	Err        error // resolver failure, if any
}

func (e *DeniedError) Error() string {
	if e.Profile != "" {
		return fmt.Sprintf("gate: %s denied for profile %s: %s", e.Permission, e.Profile, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("gate: %s denied: %s: %v", e.Permission, e.Reason, e.Err)
	}
	return fmt.Sprintf("gate: %s denied: %s", e.Permission, e.Reason)
}

func (e *DeniedError) Is(target error) bool { return target == ErrUnauthorized }

func (e *DeniedError) Unwrap() error { return e.Err }
