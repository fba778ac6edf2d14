package auth

import (
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"realtime-service/internal/models"
)

// Claims is the token payload issued by the identity service.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens and extracts the caller identity.
// This service never issues tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier from the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// NewVerifierFromEnv reads the signing secret from JWT_SECRET.
func NewVerifierFromEnv() (*Verifier, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return NewVerifier(secret), nil
}

// Verify parses and validates the token, returning the embedded identity.
func (v *Verifier) Verify(tokenString string) (models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return models.Identity{}, err
	}
	if !token.Valid || claims.UserID == 0 {
		return models.Identity{}, fmt.Errorf("invalid token claims")
	}
	return models.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
