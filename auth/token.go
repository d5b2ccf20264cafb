package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sealmax-messenger/errors"
)

// SessionClaims is the data stored inside a session JWT. The user id
// is fixed at login and never rewritten for the token's lifetime.
type SessionClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates session tokens. The secret comes
// from configuration, never from source.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl}
}

// Generate creates a signed session token for a user.
func (t *TokenManager) Generate(userID int64) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "sealmax-messenger",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return signed, nil
}

// Resolve parses and validates a session token and returns the bound
// user id. Any failure resolves to ErrUnauthenticated: the caller
// must never substitute an identity.
func (t *TokenManager) Resolve(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return 0, errors.ErrUnauthenticated
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return 0, errors.ErrUnauthenticated
	}
	return claims.UserID, nil
}
