package models

import "time"

// Event types recorded by the audit log.
const (
	EventRegisterSuccess   = "user.register.success"
	EventRegisterDuplicate = "user.register.duplicate"
	EventRegisterInvalid   = "user.register.invalid"
	EventLoginSuccess      = "user.login.success"
	EventLoginFailure      = "user.login.failure"
	EventLoginInvalid      = "user.login.invalid"
	EventLoginError        = "user.login.error"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event represents an auditable authentication action.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`  // e.g., "user.login.failure"
	Level      string    `json:"level"` // e.g., "info", "warn", "error"
	Message    string    `json:"message"`
	Username   *string   `json:"username,omitempty"`
	RemoteAddr *string   `json:"remoteAddr,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
