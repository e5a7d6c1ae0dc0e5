package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-gate"
	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
	"gorm.io/gorm"
)

// SeedPermissions creates the quote permissions and the superadmin wildcard.
func SeedPermissions(db *gorm.DB) error {
	if err := firstOrCreatePermission(db, gate.PermissionSuperAdmin, "Full system access"); err != nil {
		return err
	}
	for _, p := range policy.QuotePermissions {
		if err := firstOrCreatePermission(db, gate.NewPermission(policy.ResourceQuote, p.Action), p.Description); err != nil {
			return err
		}
	}
	return nil
}

func firstOrCreatePermission(db *gorm.DB, code gate.Permission, description string) error {
	resource, action := code.Parse()
	perm := models.Permission{
		ResourceType: resource,
		Action:       string(action),
		Description:  description,
	}
	// Use FirstOrCreate to avoid duplicates
	return db.Where("resource_type = ? AND action = ?", resource, string(action)).
		FirstOrCreate(&perm).Error
}

var systemProfiles = []struct {
	Role        actor.Role
	Description string
}{
	{actor.RoleEditor, "View and list quotes"},
	{actor.RoleAdmin, "Create, edit and send quotes and artwork"},
	{actor.RoleSuperAdmin, "Everything, including delete, archive and artwork removal"},
}

// SeedProfiles creates the EDITOR, ADMIN and SUPER_ADMIN profiles and sets
// their permissions to the role defaults.
func SeedProfiles(db *gorm.DB) error {
	// First ensure permissions exist
	if err := SeedPermissions(db); err != nil {
		return err
	}

	for _, sp := range systemProfiles {
		name := sp.Role.String()
		var profile models.Profile
		err := db.Where("name = ?", name).First(&profile).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// If profile doesn't exist, create it
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = models.Profile{Name: name, Description: sp.Description, IsSystem: true}
			if err := db.Create(&profile).Error; err != nil {
				return fmt.Errorf("create profile %s: %w", name, err)
			}
		}

		var perms []models.Permission
		for _, code := range policy.RolePermissions(sp.Role) {
			resource, action := code.Parse()
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", resource, string(action)).First(&perm).Error; err != nil {
				return fmt.Errorf("profile %s: permission %s: %w", name, code, err)
			}
			perms = append(perms, perm)
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}
