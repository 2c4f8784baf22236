// Package models holds the small set of shared identity types used across
// package boundaries (currently just the authenticated User), kept separate
// from internal/chatmodel's conversation types since auth identity and chat
// message shape are independent concerns.
package models

import "time"

// User represents an authenticated caller, resolved from either a JWT or a
// static API key.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
