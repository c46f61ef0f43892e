// cleanup-game-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"cleanup-game-system/services"
)

const (
	SSEUserIDKey  = "sse_user_id"
	SSESessionKey = "sse_session_id"
)

// SSEAuthMiddleware validates the stream connect. EventSource cannot set
// headers, so identity travels as query params: the participant must
// already have joined the session over REST before attaching a stream.
//
// Usage:
//
//	app.Get("/api/session/:sessionId/events", middleware.SSEAuthMiddleware(store), eventsHandler.Stream)
func SSEAuthMiddleware(store *services.SessionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("sessionId")
		userID := strings.TrimSpace(c.Query("userId"))

		if userID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing userId in query",
			})
		}

		view, ok := store.Get(sessionID)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		}
		if _, ok := view.User(userID); !ok {
			log.Printf("[SSEAuth] ❌ %s tried to attach to %s without joining", userID, sessionID)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "join the session before opening the stream"})
		}

		c.Locals(SSEUserIDKey, userID)
		c.Locals(SSESessionKey, sessionID)
		return c.Next()
	}
}
