package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are issued by the identity service. The salesperson is carried in
// user_id; tokens that only set the standard subject are accepted too.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Salesperson is the id the token speaks for.
func (c *Claims) Salesperson() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// SignToken issues an HS256 token for userID. Used by tooling and tests;
// production tokens come from the identity service sharing JWT_SECRET.
func SignToken(secret, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id required")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
