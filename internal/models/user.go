package models

import "time"

// User represents a registered account.
type User struct {
	ID           string    `json:"userUuid"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	Salt         string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Credentials is the subset of a User needed to check a login.
type Credentials struct {
	UserID       string
	PasswordHash string
}
