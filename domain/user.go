// Package domain contains core concepts of the messaging system.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is an immutable account record. IDs are assigned by the store
// and start at 1; 0 is reserved as the general-room sentinel.
type User struct {
	ID           int64
	Username     string
	CustomID     string // optional alternate handle, unique case-insensitively
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the shape exposed to other users (contacts, lookups).
// The password hash never leaves the repository layer through it.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	CustomID string `json:"customId,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, CustomID: u.CustomID}
}
