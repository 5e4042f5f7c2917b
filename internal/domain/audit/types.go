// Package audit defines the audit trail records written for authentication events.
package audit

import "time"

// Action names an audited event.
type Action string

const (
	ActionSignUp  Action = "SIGN_UP"
	ActionSignIn  Action = "SIGN_IN"
	ActionSignOut Action = "SIGN_OUT"
)

// ResourceAuth is the resource type recorded for authentication events.
const ResourceAuth = "auth"

// Entry is one row of the audit trail.
type Entry struct {
	ID           string
	UserID       string
	Action       Action
	ResourceType string
	IP           string
	UserAgent    string
	CreatedAt    time.Time
}
