package policy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRoleGateHierarchy(t *testing.T) {
	g := policy.NewRoleGate()
	ctx := context.Background()

	tests := []struct {
		role  actor.Role
		allow []gate.Action
		deny  []gate.Action
	}{
		{
			role:  actor.RoleEditor,
			allow: []gate.Action{gate.ActionView, gate.ActionList},
			deny:  []gate.Action{gate.ActionCreate, gate.ActionUpdate, policy.ActionSend, gate.ActionDelete},
		},
		{
			role:  actor.RoleAdmin,
			allow: []gate.Action{gate.ActionView, gate.ActionCreate, gate.ActionUpdate, policy.ActionSend, policy.ActionArtwork},
			deny:  []gate.Action{gate.ActionDelete, policy.ActionArchive, policy.ActionRemoveArtwork},
		},
		{
			role:  actor.RoleSuperAdmin,
			allow: []gate.Action{gate.ActionView, policy.ActionSend, gate.ActionDelete, policy.ActionArchive, policy.ActionRemoveArtwork},
		},
		{
			role: actor.RoleNone,
			deny: []gate.Action{gate.ActionView, gate.ActionList},
		},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			who := actor.Internal{ID: 1, Email: "staff@shop.test", Role: tt.role}
			for _, a := range tt.allow {
				if err := g.Authorize(ctx, who, a); err != nil {
					t.Errorf("%s should be allowed to %s: %v", tt.role, a, err)
				}
			}
			for _, a := range tt.deny {
				if err := g.Authorize(ctx, who, a); !errors.Is(err, gate.ErrUnauthorized) {
					t.Errorf("%s should not be allowed to %s", tt.role, a)
				}
			}
		})
	}
}

func TestZeroActorDenied(t *testing.T) {
	g := policy.NewRoleGate()
	if g.Can(context.Background(), actor.Internal{}, gate.ActionView) {
		t.Fatal("zero actor must be denied")
	}
}

func TestCapabilities(t *testing.T) {
	g := policy.NewRoleGate()
	caps := g.Capabilities(context.Background(), actor.Internal{ID: 2, Role: actor.RoleEditor})
	if len(caps) != 2 {
		t.Fatalf("editor capabilities = %v, want list and view", caps)
	}
}

func TestDBProfileResolver(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Permission{}, &models.Profile{}, &models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	send := models.Permission{ResourceType: "quote", Action: "send"}
	view := models.Permission{ResourceType: "quote", Action: "view"}
	db.Create(&send)
	db.Create(&view)
	profile := models.Profile{Name: "ADMIN", Permissions: []models.Permission{send, view}}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	user := models.User{Email: "admin@shop.test", Password: "x", ProfileID: &profile.ID}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	bare := models.User{Email: "nobody@shop.test", Password: "x"}
	db.Create(&bare)

	resolver := policy.NewDBProfileResolver(db)
	who, err := resolver.LoadActor(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("load actor: %v", err)
	}
	if who.Role != actor.RoleAdmin || who.Email != "admin@shop.test" {
		t.Fatalf("unexpected actor %+v", who)
	}

	g := policy.NewAuthGate(db, time.Minute)
	ctx := context.Background()
	if !g.Can(ctx, who, policy.ActionSend) {
		t.Fatal("expected send permission from stored profile")
	}
	if g.Can(ctx, who, gate.ActionDelete) {
		t.Fatal("delete not granted by stored profile")
	}

	nobody, _ := resolver.LoadActor(ctx, bare.ID)
	if g.Can(ctx, nobody, gate.ActionView) {
		t.Fatal("user without profile must be denied")
	}
}

func TestIsSuperAdmin(t *testing.T) {
	g := policy.NewRoleGate()
	ctx := context.Background()
	tests := []struct {
		who  actor.Internal
		want bool
	}{
		{actor.Internal{ID: 1, Role: actor.RoleSuperAdmin}, true},
		{actor.Internal{ID: 2, Role: actor.RoleAdmin}, false},
		{actor.Internal{ID: 3, Role: actor.RoleEditor}, false},
		{actor.Internal{Role: actor.RoleSuperAdmin}, false},
	}
	for _, tt := range tests {
		if got := g.IsSuperAdmin(ctx, tt.who); got != tt.want {
			t.Errorf("IsSuperAdmin(%+v) = %v, want %v", tt.who, got, tt.want)
		}
	}
}
