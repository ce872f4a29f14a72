// Package auth verifies the session tokens issued by the external
// authentication service and exposes the caller's dispatcher id to the
// API layer. This core never authenticates credentials itself.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	DispatcherID string `json:"dispatcher_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 session tokens with a shared
// secret loaded from configuration.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) TokenManager {
	return TokenManager{secret: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for a dispatcher. Used by local tooling
// and tests; production tokens come from the external auth service sharing
// the same secret.
func (t TokenManager) Generate(dispatcherID string) (string, error) {
	expirationTime := time.Now().Add(t.duration)

	claims := &CustomClaims{
		DispatcherID: dispatcherID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "dispatch-chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses and validates the signature and expiration of a JWT
// string, returning its claims.
func (t TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
