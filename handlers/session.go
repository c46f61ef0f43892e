// handlers/session.go
package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"cleanup-game-system/config"
	"cleanup-game-system/middleware"
	"cleanup-game-system/models"
	"cleanup-game-system/services"
)

// SessionHandler is the REST gateway in front of the session store and the
// broadcaster. All request validation happens here; the core only sees
// clean identifiers.
type SessionHandler struct {
	Store *services.SessionStore
	Hub   *services.Broadcaster
	Cfg   *config.Config
}

func NewSessionHandler(store *services.SessionStore, hub *services.Broadcaster, cfg *config.Config) *SessionHandler {
	return &SessionHandler{Store: store, Hub: hub, Cfg: cfg}
}

// SetupSessionRoutes registers the session lifecycle endpoints. Begin/end
// are host-only, everything else is open to players.
func SetupSessionRoutes(app *fiber.App, h *SessionHandler, events *EventsHandler) {
	app.Post("/api/session/start", h.CreateSession)
	app.Get("/api/session", h.ListSessions)
	app.Get("/api/session/:sessionId", h.GetSession)
	app.Post("/api/session/:sessionId/leave", h.LeaveSession)
	app.Post("/api/session/:sessionId/status", h.UpdateStatus)

	app.Get("/api/session/:sessionId/events",
		middleware.SSEAuthMiddleware(h.Store), events.Stream)

	host := app.Group("/api/session/:sessionId", middleware.HostAuthMiddleware(h.Cfg.SessionSecret))
	host.Post("/begin", h.BeginSession)
	host.Post("/end", h.EndSession)
}

// CreateSession opens a new lobby and hands the caller the shareable code
// plus the host key that guards begin/end.
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var body struct {
		HostName string `json:"hostName"`
	}
	_ = c.BodyParser(&body) // body is optional

	view := h.Store.Create(body.HostName)
	hostKey, err := middleware.MintHostKey(h.Cfg.SessionSecret, view.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to sign host key"})
	}

	log.Printf("Session created %s", view.ID)
	return c.JSON(fiber.Map{"sessionId": view.ID, "hostKey": hostKey})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"sessions": h.Store.List()})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	view, ok := h.Store.Get(c.Params("sessionId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	return c.JSON(view)
}

// BeginSession moves the lobby into the started phase.
func (h *SessionHandler) BeginSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if err := h.Hub.OnSessionStart(sessionID); err != nil {
		return sessionErrorResponse(c, err)
	}
	log.Printf("Session started %s", sessionID)
	return c.JSON(fiber.Map{"ok": true})
}

// EndSession terminates the session; idempotent for unknown codes.
func (h *SessionHandler) EndSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	h.Hub.OnSessionEnd(sessionID)
	log.Printf("Session ended %s", sessionID)
	return c.JSON(fiber.Map{"ok": true})
}

// LeaveSession removes a participant; safe to call twice.
func (h *SessionHandler) LeaveSession(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}
	h.Hub.OnLeave(c.Params("sessionId"), body.UserID)
	return c.JSON(fiber.Map{"ok": true})
}

// UpdateStatus merges the lobby readiness fields a client reports while it
// scans the player's drive.
func (h *SessionHandler) UpdateStatus(c *fiber.Ctx) error {
	var body struct {
		UserID string             `json:"userId"`
		Status models.StatusPatch `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId and status are required"})
	}
	if body.Status.LoadPercent != nil && (*body.Status.LoadPercent < 0 || *body.Status.LoadPercent > 100) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "loadPercent must be 0-100"})
	}
	if body.Status.FileCount != nil && *body.Status.FileCount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fileCount must be non-negative"})
	}

	if err := h.Hub.OnStatusUpdate(c.Params("sessionId"), body.UserID, body.Status); err != nil {
		return sessionErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// sessionErrorResponse maps the core's typed failures onto HTTP statuses.
func sessionErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrParticipantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not in session"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session already started or ended"})
	case errors.Is(err, services.ErrInvalidSize):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "size must be non-negative"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
