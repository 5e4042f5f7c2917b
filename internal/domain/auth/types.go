// Package auth contains domain-level types for credentials, users and sessions.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence; values match the profiles.role column.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleNurse   Role = "NURSE"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalises a role name. The second result is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleNurse, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// User is the persisted account record. PasswordHash is a self-describing credential hash.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile carries per-user authorization data.
type Profile struct {
	UserID string
	Role   Role
}

// Session is the server-side record of one authenticated client.
// Token is the opaque credential; stores persist only its digest.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// ValidAt reports whether the session is still valid at now (now < ExpiresAt).
func (s Session) ValidAt(now time.Time) bool { return now.Before(s.ExpiresAt) }

// Identity is the read-only projection of the authenticated principal handed to handlers.
// Role is empty after authentication alone; role-gated routes fill it from the profile.
type Identity struct {
	UserID           string    `json:"id"`
	Email            string    `json:"email"`
	Role             Role      `json:"role,omitempty"` // Set by RequireRole
	SessionExpiresAt time.Time `json:"-"`
}
