package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable record backing a refresh token. The refresh token
// itself is a signed JWT handed to the client; only its fingerprint is stored
// server-side so a stolen database row cannot be replayed as a credential.
// Deleting the row revokes the refresh token.
type Session struct {
	SessionID   uuid.UUID  // UUIDv7
	PrincipalID uuid.UUID  // Who the refresh token belongs to
	OrgID       *uuid.UUID // Denormalized tenant reference, nil for superadmins
	Fingerprint string     // base58(SHA-256(refresh token))

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
