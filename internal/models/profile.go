package models

import (
	"time"

	"github.com/diewo77/go-gate"
)

// Profile groups quote permissions. EDITOR, ADMIN and SUPER_ADMIN are system
// profiles reset by the seed on every start; custom profiles are managed by a
// super admin. Deleting a profile removes the row so its name can be reused.
type Profile struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Name        string       `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string       `gorm:"size:500" json:"description,omitempty"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"`
	Permissions []Permission `gorm:"many2many:profile_permissions;" json:"permissions,omitempty"`
	Users       []User       `gorm:"foreignKey:ProfileID" json:"users,omitempty"`
}

// Grants converts the loaded permissions for the gate.
func (p *Profile) Grants() []gate.Permission {
	out := make([]gate.Permission, len(p.Permissions))
	for i, perm := range p.Permissions {
		out[i] = perm.Code()
	}
	return out
}

// Permission is one grantable "resource:action" pair, e.g. "quote:send".
// The rows are seeded; there is no API to create them.
type Permission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ResourceType string    `gorm:"size:50;not null;uniqueIndex:idx_perm_resource_action" json:"resource_type"`
	Action       string    `gorm:"size:50;not null;uniqueIndex:idx_perm_resource_action" json:"action"`
	Description  string    `gorm:"size:200" json:"description,omitempty"`
}

// Code returns the permission as the gate matches it.
func (p Permission) Code() gate.Permission {
	return gate.NewPermission(p.ResourceType, gate.Action(p.Action))
}
