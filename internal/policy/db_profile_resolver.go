package policy

import (
	"context"

	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"gorm.io/gorm"
)

// DBProfileResolver fetches a staff member's profile and permissions from the
// database. It implements gate.ProfileResolver for internal actors.
type DBProfileResolver struct {
	DB *gorm.DB
}

// NewDBProfileResolver creates a new database-backed profile resolver.
func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve looks up the actor's user row, preloading permissions.
// Returns nil if the user has no profile assigned.
func (r *DBProfileResolver) Resolve(ctx context.Context, who actor.Internal) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Profile.Permissions").First(&user, who.ID).Error
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		return nil, nil
	}
	return &dbProfileAdapter{profile: user.Profile}, nil
}

// LoadActor returns the internal actor for a user id, with its role taken
// from the assigned profile.
func (r *DBProfileResolver) LoadActor(ctx context.Context, userID uint) (actor.Internal, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Profile").First(&user, userID).Error; err != nil {
		return actor.Internal{}, err
	}
	return user.Actor(), nil
}

// dbProfileAdapter wraps a models.Profile to implement gate.Profile.
type dbProfileAdapter struct {
	profile *models.Profile
}

func (a *dbProfileAdapter) ID() uint { return a.profile.ID }

func (a *dbProfileAdapter) Name() string { return a.profile.Name }

// HasPermission supports "*:*" and "quote:*" wildcards.
func (a *dbProfileAdapter) HasPermission(perm gate.Permission) bool {
	return gate.HasPermission(a.Permissions(), perm)
}

func (a *dbProfileAdapter) Permissions() []gate.Permission { return a.profile.Grants() }

// RoleResolver maps an actor's role straight onto the static role profile,
// without a database round trip.
type RoleResolver struct{}

// Resolve returns nil for actors without a role.
func (RoleResolver) Resolve(_ context.Context, who actor.Internal) (gate.Profile, error) {
	if who.Role == actor.RoleNone {
		return nil, nil
	}
	return RoleProfile(who.Role), nil
}
