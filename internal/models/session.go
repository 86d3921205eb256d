package models

import "time"

// Session is the credential a chat acts with. The token is opaque to the client.
type Session struct {
	ChatID    int64      `json:"chat_id"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Valid reports whether the session can be attached to a backend request at the given time.
func (s *Session) Valid(at time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	if s.ExpiresAt != nil && !at.Before(*s.ExpiresAt) {
		return false
	}
	return true
}
