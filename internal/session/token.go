// Package session mints and validates the short-lived opaque session tokens
// handed to clients. Tokens are advisory: the broker does not persist them,
// and validity is simply "not older than the TTL".
package session

import (
	"time"

	"github.com/google/uuid"
)

// Token is a short-lived opaque credential.
type Token struct {
	Value     string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Minter issues tokens with a fixed TTL.
type Minter struct {
	ttl time.Duration
	now func() time.Time
}

// NewMinter creates a Minter with the given TTL.
//
// Precondition: ttl must be > 0.
func NewMinter(ttl time.Duration) *Minter {
	return &Minter{ttl: ttl, now: time.Now}
}

// Mint issues a fresh token.
//
// Postcondition: Returns a token with a unique value and ExpiresAt = IssuedAt + TTL.
func (m *Minter) Mint() Token {
	issued := m.now()
	return Token{
		Value:     uuid.NewString(),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(m.ttl),
	}
}

// ValidShape reports whether value has the shape of a token this broker
// mints. The broker does not track issued tokens, so this is the only local
// check available to the validate-session endpoint.
func ValidShape(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// Expired reports whether the token's advisory validity window has passed.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
