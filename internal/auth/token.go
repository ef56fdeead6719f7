// Package auth issues and verifies the bearer tokens that identify a
// participant on the HTTP API and the live channel.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const issuer = "pairchat"

var ErrUnauthorized = errors.New("unauthorized")

// Claims is the token payload.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for userID valid for the configured TTL.
func (m *TokenManager) Issue(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// participant ID carried by the token.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.Wrap(ErrUnauthorized, "token missing")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", errors.Wrapf(ErrUnauthorized, "invalid token: %v", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", errors.Wrap(ErrUnauthorized, "invalid claims")
	}
	return claims.UserID, nil
}

// PeekUserID reads the participant ID from a token without verifying it.
// Clients use it to learn their own identity; servers must use Verify.
func PeekUserID(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", errors.Wrapf(ErrUnauthorized, "malformed token: %v", err)
	}
	if claims.UserID == "" {
		return "", errors.Wrap(ErrUnauthorized, "token carries no user_id")
	}
	return claims.UserID, nil
}
