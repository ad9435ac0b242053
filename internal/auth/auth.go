package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("no token provided")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims carried by every session token. Subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

type Authenticator interface {
	GenerateToken(userID string) (string, error)
	ValidateToken(token string) (*Claims, error)
}
