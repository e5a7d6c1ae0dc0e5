package policy

import (
	"context"
	"time"

	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
	"gorm.io/gorm"
)

// AuthGate is the central authorization point for quote operations.
type AuthGate struct {
	Gate          *gate.Gate[actor.Internal]
	CacheResolver *gate.CachedResolver[actor.Internal]
}

// NewAuthGate checks permissions against the profiles stored in the database,
// caching each actor's profile for cacheTTL.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	return newAuthGate(NewDBProfileResolver(db), cacheTTL)
}

// NewRoleGate checks permissions against the static role profiles.
func NewRoleGate() *AuthGate {
	return newAuthGate(RoleResolver{}, time.Minute)
}

func newAuthGate(resolver gate.ProfileResolver[actor.Internal], ttl time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[actor.Internal](resolver, ttl)
	return &AuthGate{
		Gate:          gate.New[actor.Internal](cached),
		CacheResolver: cached,
	}
}

// Authorize returns a *gate.DeniedError, matching gate.ErrUnauthorized,
// unless who may perform action on quotes.
func (ag *AuthGate) Authorize(ctx context.Context, who actor.Internal, action gate.Action) error {
	return ag.Gate.Authorize(ctx, who, action, ResourceQuote)
}

// Can is a convenience method that returns bool instead of error.
func (ag *AuthGate) Can(ctx context.Context, who actor.Internal, action gate.Action) bool {
	return ag.Authorize(ctx, who, action) == nil
}

// Capabilities lists the quote actions who may perform, for UIs that hide
// unavailable buttons.
func (ag *AuthGate) Capabilities(ctx context.Context, who actor.Internal) []gate.Action {
	actions := make([]gate.Action, 0, len(QuotePermissions))
	for _, p := range QuotePermissions {
		if p.Action != gate.WildcardAll {
			actions = append(actions, p.Action)
		}
	}
	return ag.Gate.Granted(ctx, who, ResourceQuote, actions...)
}

// InvalidateAll clears the profile cache. Call it when profile permissions
// are modified.
func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

// IsSuperAdmin reports whether who holds the global *:* permission, which
// also guards profile administration.
func (ag *AuthGate) IsSuperAdmin(ctx context.Context, who actor.Internal) bool {
	if who.ID == 0 {
		return false
	}
	prof, err := ag.CacheResolver.Resolve(ctx, who)
	if err != nil || prof == nil {
		return false
	}
	return prof.HasPermission(gate.PermissionSuperAdmin)
}
