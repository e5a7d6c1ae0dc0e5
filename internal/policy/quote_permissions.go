package policy

import (
	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
)

// ResourceQuote is the gate resource type for every quote operation.
const ResourceQuote = "quote"

// Quote actions on top of the generic CRUD actions of the gate package.
const (
	ActionSend          gate.Action = "send"
	ActionArtwork       gate.Action = "artwork"
	ActionArchive       gate.Action = "archive"
	ActionRemoveArtwork gate.Action = "remove_artwork"
)

// QuotePermissions lists every quote permission with a description, in the
// order they are seeded.
var QuotePermissions = []struct {
	Action      gate.Action
	Description string
}{
	{gate.WildcardAll, "All quote actions"},
	{gate.ActionList, "List quotes"},
	{gate.ActionView, "View quote details, audit trail and artwork history"},
	{gate.ActionCreate, "Create quotes"},
	{gate.ActionUpdate, "Edit quotes"},
	{ActionSend, "Send quotes to customers"},
	{ActionArtwork, "Upload artwork and send it for approval"},
	{ActionArchive, "Archive quotes"},
	{ActionRemoveArtwork, "Remove artwork from quotes"},
	{gate.ActionDelete, "Delete quotes"},
}

func quotePerm(a gate.Action) gate.Permission {
	return gate.NewPermission(ResourceQuote, a)
}

// RolePermissions returns the permissions granted to a role. Each role
// includes everything the role below it can do.
func RolePermissions(r actor.Role) []gate.Permission {
	editor := []gate.Permission{quotePerm(gate.ActionList), quotePerm(gate.ActionView)}
	admin := append(append([]gate.Permission{}, editor...),
		quotePerm(gate.ActionCreate),
		quotePerm(gate.ActionUpdate),
		quotePerm(ActionSend),
		quotePerm(ActionArtwork),
	)
	switch r {
	case actor.RoleEditor:
		return editor
	case actor.RoleAdmin:
		return admin
	case actor.RoleSuperAdmin:
		return []gate.Permission{gate.PermissionSuperAdmin}
	}
	return nil
}

// RoleProfile returns the static gate profile of a role. The profile id is
// the role ordinal.
func RoleProfile(r actor.Role) *gate.StaticProfile {
	return gate.NewStaticProfile(uint(r), r.String(), RolePermissions(r)...)
}
