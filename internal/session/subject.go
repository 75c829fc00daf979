package session

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Subject extracts the subject claim from an access token without verifying
// the signature. Verification belongs to the backend; the gateway reads the
// claim only to derive presentation fields, never for authorization.
func Subject(token string) (uuid.UUID, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
