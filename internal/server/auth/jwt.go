// Package auth issues and parses the HS256 access tokens handed out by the
// identity provider. A token carries the cached authorization claims, so a
// stale role survives in an active session until the token is refreshed or
// the account's sessions are revoked.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the JWT body: registered claims, the mirrored authorization
// payload and the session generation the token was issued under.
type TokenClaims struct {
	jwt.RegisteredClaims
	models.Claims
	Generation int `json:"gen"`
}

// GenerateToken signs an access token for the account subject.
func GenerateToken(subject string, claims models.Claims, generation int, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Claims:     claims,
		Generation: generation,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry (relative to now) and returns
// the token body. Expired tokens yield common.ErrTokenExpired, anything else
// wraps common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, now func() time.Time) (*TokenClaims, error) {
	claims := &TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
