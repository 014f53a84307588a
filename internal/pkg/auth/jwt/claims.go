package jwt

import "github.com/golang-jwt/jwt"

// SessionClaims are the claims carried by a session token.
// The token lets a reconnecting client prove it owns a previous session so the
// server can hand back the display name bound to that session.
type SessionClaims struct {
	jwt.StandardClaims

	// SessionID is the server-assigned session identifier.
	SessionID string `json:"sid"`
}
