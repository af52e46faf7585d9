package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims of an Autodesk access token that the service
// reads. The signature is not checked here; identity is always confirmed
// against the profile API.
type TokenClaims struct {
	UserID   string `json:"userid"`
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

var peekParser = jwt.NewParser()

// PeekClaims decodes token without verifying it. Opaque (non-JWT) tokens
// return an error; callers treat that as "no claims".
func PeekClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := peekParser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf(msgTokenParseFailed, err)
	}
	return claims, nil
}

// Expiry returns the exp claim, if any.
func (c *TokenClaims) Expiry() (time.Time, bool) {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}
