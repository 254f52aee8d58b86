package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalUserID is the fiber locals key holding the authenticated salesperson.
const LocalUserID = "user_id"

const clockSkew = 30 * time.Second

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

// JWTMiddleware validates HS256 bearer tokens and stores the salesperson id
// under LocalUserID. WebSocket handshakes from browsers cannot carry headers,
// so the token may also arrive as the access_token query parameter.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	keyFunc := func(*jwt.Token) (interface{}, error) { return secretBytes, nil }

	return func(c *fiber.Ctx) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(raw, &Claims{}, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(clockSkew),
		)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}
		id := claims.Salesperson()
		if id == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token carries no salesperson")
		}

		c.Locals(LocalUserID, id)
		return c.Next()
	}
}

// UserID returns the salesperson stored by JWTMiddleware, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func tokenFromRequest(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}
