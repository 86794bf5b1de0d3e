// internal/service/auth_service.go
package service

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gowa-keeper/internal/helper"
)

var (
	jwtSecret         []byte
	accessTokenExpiry time.Duration
	adminUsername     string
	adminPasswordHash string

	ErrInvalidCredentials = errors.New("invalid username or password")
)

// InitAuthConfig initializes authentication configuration from environment
// variables. The API has a single operator account; credentials live in env,
// not in the database.
func InitAuthConfig(secret, username, passwordHash string) {
	jwtSecret = []byte(secret)
	adminUsername = username
	adminPasswordHash = passwordHash

	// Access token expiry (default: 1 hour)
	accessExp := os.Getenv("JWT_ACCESS_TOKEN_EXPIRY")
	if accessExp == "" {
		accessExp = "1h"
	}
	accessTokenExpiry, _ = time.ParseDuration(accessExp)
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticate validates the operator credentials.
func Authenticate(username, password string) error {
	if username != adminUsername || adminPasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := helper.VerifyPassword(adminPasswordHash, password); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateAccessToken creates a signed JWT for the operator.
func GenerateAccessToken(username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenExpiry)),
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateAccessToken parses and verifies a JWT, returning its claims.
func ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
