package models

import "time"

// RevokedToken is a denylist record for a token invalidated before its
// natural expiry. ExpiresAt mirrors the token's own exp claim, so the
// record never needs to outlive the token.
type RevokedToken struct {
	Token       string
	PrincipalID string
	RevokedAt   time.Time
	ExpiresAt   time.Time
}
