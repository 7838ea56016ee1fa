// Package auth issues and parses the HS256 access tokens that scope item and
// sync operations to an authenticated user.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacknotes/syncserver/internal/common"
)

// Claims carries the standard registered claims plus the owning user's uuid.
type Claims struct {
	jwt.RegisteredClaims
	UserUUID string `json:"user_uuid"`
}

// GenerateToken signs an access token for userUUID valid for validityDuration.
func GenerateToken(userUUID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserUUID: userUUID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserUUIDFromToken validates tokenString and extracts the user uuid.
// Expired or malformed tokens fail with common.ErrorInvalidToken.
func GetUserUUIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", common.ErrorInvalidToken
	}

	if !token.Valid || claims.UserUUID == "" {
		return "", common.ErrorInvalidToken
	}

	return claims.UserUUID, nil
}
