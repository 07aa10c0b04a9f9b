package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parser never verifies signatures: the client does not hold the server key.
// It only reads claims to learn when a persisted token stops being usable.
var parser = jwt.NewParser()

// TokenExpiry returns the expiration time carried by a JWT.
// ok is false when the token is opaque or carries no "exp" claim.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsExpired reports whether the token is a JWT whose expiration is past.
// Opaque tokens are never considered expired; the server is the judge.
func IsExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !now.Before(exp)
}
