// middleware/host.go
package middleware

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const HostSessionKey = "host_session_id"

// MintHostKey signs a host key for a freshly created session. Whoever holds
// it may begin and end that session.
func MintHostKey(secret, sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sid":  sessionID,
		"role": "host",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// HostAuthMiddleware requires a valid host key for the session named in the
// route. The key travels as a Bearer token or an X-Host-Key header.
func HostAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if raw == "" || raw == c.Get("Authorization") {
			raw = c.Get("X-Host-Key")
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "host key missing"})
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Printf("❌ [HOST_AUTH] Invalid host key for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid host key"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["role"] != "host" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid host key"})
		}
		sid, _ := claims["sid"].(string)
		if routeSID := c.Params("sessionId"); routeSID != "" && sid != routeSID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "host key is for a different session"})
		}

		c.Locals(HostSessionKey, sid)
		return c.Next()
	}
}
