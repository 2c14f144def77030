package models

import "time"

// Session is the server-side metadata recorded for an issued token.
// It is informational; token validity never depends on it.
type Session struct {
	ID         string    `json:"sessionId"`
	UserID     string    `json:"userUuid"`
	Username   string    `json:"username"`
	RemoteAddr string    `json:"remoteAddr,omitempty"`
	LoggedInAt time.Time `json:"loggedInAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
