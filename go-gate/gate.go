// Package gate checks "resource:action" permissions against role profiles.
//
// The subject type is generic: Gate[uint] for bare user ids, Gate[Actor] for
// a richer identity struct. Callers plug in a ProfileResolver that maps a
// subject onto its profile; the package knows nothing about domain models.
package gate

import "context"

// Gate is the authorization checkpoint. U must be comparable so the zero
// value can be treated as anonymous.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
}

// New creates a gate that resolves profiles through resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver}
}

// Authorize returns nil when user's profile grants resourceType:action.
// Denials are *DeniedError values matching ErrUnauthorized.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string) error {
	perm := NewPermission(resourceType, action)
	var zero U
	if user == zero {
		return &DeniedError{Permission: perm, Reason: ReasonAnonymous}
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return &DeniedError{Permission: perm, Reason: ReasonLookupFailed, Err: err}
	}
	if profile == nil {
		return &DeniedError{Permission: perm, Reason: ReasonNoProfile}
	}
	if !profile.HasPermission(perm) {
		return &DeniedError{Permission: perm, Profile: profile.Name(), Reason: ReasonNotGranted}
	}
	return nil
}

// Can reports whether Authorize would succeed.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string) bool {
	return g.Authorize(ctx, user, action, resourceType) == nil
}

// Granted filters actions down to those user may perform on resourceType,
// resolving the profile once. UIs use it to hide unavailable buttons.
func (g *Gate[U]) Granted(ctx context.Context, user U, resourceType string, actions ...Action) []Action {
	var zero U
	if user == zero {
		return nil
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return nil
	}
	var out []Action
	for _, a := range actions {
		if profile.HasPermission(NewPermission(resourceType, a)) {
			out = append(out, a)
		}
	}
	return out
}
