package domain

import (
	"strings"
	"time"
)

// Role is the portal role attached to a user.
type Role string

const (
	RoleBorrower   Role = "borrower"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBorrower, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role can manage other users' magic links.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type User struct {
	ID                 string // ULID
	Email              string // normalized: lowercased and trimmed, unique
	Role               Role
	PasswordHash       string // argon2id PHC string, empty until a password is set
	IsTemporary        bool   // created implicitly by a magic-link request
	ExternalIdentityID string // opaque key into the identity provider
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPassword reports whether the user has upgraded from link-only sign-in.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// NormalizeEmail lowercases and trims an email address. All email
// comparisons and hashes in the auth subsystem go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
