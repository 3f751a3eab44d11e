package jwt

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/podilnyk/monojar/internal/models/claims"
)

// BuildString creates a JWT string for the given admin and token expiration time.
func BuildString(adminID int, name, secret string, tokenExp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims.Auth{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExp)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
		AdminID: adminID,
		Name:    name,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Bearer %s", tokenString), nil
}

// GetAdminID extracts the admin ID from a JWT token.
func GetAdminID(tokenString, secret string) (int, error) {
	claims := new(claims.Auth)

	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			// Verify that the token method is HS256
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return 0, fmt.Errorf(
					"unexpected signing method: %v", token.Header["alg"],
				)
			}

			// Return the secret key
			return []byte(secret), nil
		})
	if err != nil {
		return 0, fmt.Errorf("error parsing token: %w", err)
	}

	if !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}

	return claims.AdminID, nil
}

// SignPayload wraps an arbitrary payload into a signed token. Used to
// attach a verifiable signature to payment search responses.
func SignPayload(payload map[string]interface{}, secret string, tokenExp time.Duration) (string, error) {
	mapClaims := jwt.MapClaims{
		"exp": jwt.NewNumericDate(time.Now().Add(tokenExp)),
		"iat": jwt.NewNumericDate(time.Now()),
		"jti": uuid.NewString(),
	}
	for k, v := range payload {
		mapClaims[k] = v
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString([]byte(secret))
}
