// Package token extracts expiry information from access tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errNoExpiry = errors.New("token has no exp claim")

// ExpiryFromAccessToken reads the exp claim from a JWT access token without
// verifying its signature. The token was just issued by the backend over an
// authenticated channel; the claim is used only to schedule refresh, never to
// grant access.
func ExpiryFromAccessToken(accessToken string) (time.Time, error) {
	parser := jwt.NewParser()

	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}

	return claims.ExpiresAt.Time, nil
}
