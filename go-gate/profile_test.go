package gate_test

import (
	"slices"
	"testing"

	"github.com/diewo77/go-gate"
)

func TestStaticProfile_HasPermission(t *testing.T) {
	profile := gate.NewStaticProfile(1, "ADMIN",
		gate.NewPermission("quote", gate.ActionCreate),
		gate.NewPermission("quote", "send"),
	)
	if !profile.HasPermission("quote:send") {
		t.Error("should have quote:send")
	}
	if profile.HasPermission("quote:delete") {
		t.Error("should not have quote:delete")
	}

	super := gate.NewStaticProfile(2, "SUPER_ADMIN", gate.PermissionSuperAdmin)
	if !super.HasPermission("quote:delete") {
		t.Error("super admin should have any permission")
	}
}

func TestStaticProfile_PermissionsAreDeduplicatedCopies(t *testing.T) {
	profile := gate.NewStaticProfile(1, "EDITOR", "quote:view", "quote:list", "quote:view")
	perms := profile.Permissions()
	if !slices.Equal(perms, []gate.Permission{"quote:list", "quote:view"}) {
		t.Fatalf("permissions = %v", perms)
	}
	perms[0] = gate.PermissionSuperAdmin
	if profile.HasPermission("quote:delete") {
		t.Error("mutating the returned slice changed the profile")
	}
}
