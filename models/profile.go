package models

import (
	"time"
)

// Role is an authorization role stored on a profile row
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleCollab Role = "collab"
	RoleUser   Role = "user"
)

// Profile is the application-side record of an identity-provider user
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  *string   `json:"full_name" db:"full_name"`
	Role      Role      `json:"role" db:"role"`
	AvatarURL *string   `json:"avatar_url" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// RoleOrDefault returns the stored role, or def when the row carries none
func (p *Profile) RoleOrDefault(def Role) Role {
	if p == nil || p.Role == "" {
		return def
	}
	return p.Role
}
