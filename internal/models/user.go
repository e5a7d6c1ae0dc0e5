package models

import (
	"time"

	"github.com/diewo77/go-quotes/internal/actor"
	"gorm.io/gorm"
)

// User is a back-office staff member.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"` // Hashed, never exposed in JSON
	// ProfileID links the user to a role profile (EDITOR, ADMIN, SUPER_ADMIN).
	// A nil value means the user has no profile assigned and cannot touch quotes.
	ProfileID *uint    `gorm:"index" json:"profile_id,omitempty"`
	Profile   *Profile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
}

// Role maps the assigned profile onto the quote role hierarchy.
func (u *User) Role() actor.Role {
	if u.Profile == nil {
		return actor.RoleNone
	}
	return actor.ParseRole(u.Profile.Name)
}

// Actor returns the user as an internal actor.
func (u *User) Actor() actor.Internal {
	return actor.Internal{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role()}
}
