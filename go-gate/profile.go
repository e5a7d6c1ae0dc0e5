package gate

import (
	"context"
	"slices"
)

// Profile is a named set of permissions.
type Profile interface {
	ID() uint
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver finds the profile of a subject. A nil profile with a nil
// error means the subject has none.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// ResolverFunc adapts a function to ProfileResolver.
type ResolverFunc[U any] func(ctx context.Context, user U) (Profile, error)

func (f ResolverFunc[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	return f(ctx, user)
}

// StaticProfile is an immutable in-memory profile.
type StaticProfile struct {
	id          uint
	name        string
	permissions []Permission
}

// NewStaticProfile creates a profile holding permissions, duplicates removed.
func NewStaticProfile(id uint, name string, permissions ...Permission) *StaticProfile {
	perms := slices.Clone(permissions)
	slices.Sort(perms)
	return &StaticProfile{id: id, name: name, permissions: slices.Compact(perms)}
}

func (p *StaticProfile) ID() uint     { return p.id }
func (p *StaticProfile) Name() string { return p.name }

// Permissions returns a sorted copy of the profile's permissions.
func (p *StaticProfile) Permissions() []Permission { return slices.Clone(p.permissions) }

// HasPermission reports whether any held permission matches requested.
func (p *StaticProfile) HasPermission(requested Permission) bool {
	return HasPermission(p.permissions, requested)
}

// HasPermission reports whether any of held matches requested. Profile
// implementations backed by other storage can share it.
func HasPermission(held []Permission, requested Permission) bool {
	for _, perm := range held {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}
