// handlers/files.go
package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"cleanup-game-system/models"
	"cleanup-game-system/services"
	"cleanup-game-system/utils"
)

// FilesHandler bridges the storage providers and the scoring core: listing
// is a straight proxy, deleting first soft-deletes at the provider and only
// then applies the scored action.
type FilesHandler struct {
	Store *services.SessionStore
	Hub   *services.Broadcaster
}

func NewFilesHandler(store *services.SessionStore, hub *services.Broadcaster) *FilesHandler {
	return &FilesHandler{Store: store, Hub: hub}
}

func SetupFileRoutes(app *fiber.App, h *FilesHandler) {
	app.Get("/api/files", h.ListFiles)
	app.Post("/api/files/delete", h.DeleteFile)
}

// resolveClient looks up the participant and builds the provider client
// for their token. Listing and deleting require a started session.
func (h *FilesHandler) resolveClient(c *fiber.Ctx, sessionID, userID string) (utils.StorageClient, error) {
	view, ok := h.Store.Get(sessionID)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	if view.Phase != models.PhaseStarted {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Game not started yet"})
	}
	participant, ok := view.User(userID)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not in session"})
	}

	client, err := utils.NewStorageClient(participant.Provider, participant.AccessToken)
	if err != nil {
		if errors.Is(err, utils.ErrProviderAuth) {
			return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Storage token expired or missing. Please log in again."})
		}
		return nil, c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return client, nil
}

// ListFiles returns the participant's deletable items.
// GET /api/files?sessionId=...&userId=...
func (h *FilesHandler) ListFiles(c *fiber.Ctx) error {
	sessionID := c.Query("sessionId")
	userID := c.Query("userId")
	if sessionID == "" || userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sessionId and userId are required"})
	}

	client, err := h.resolveClient(c, sessionID, userID)
	if client == nil {
		return err // response already written
	}

	files, err := client.ListItems(c.Context())
	if err != nil {
		return providerErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"files": files})
}

// DeleteFile soft-deletes the item at the provider, then scores it and
// fans out the updated snapshot plus any milestone events to the room.
func (h *FilesHandler) DeleteFile(c *fiber.Ctx) error {
	var body struct {
		SessionID string `json:"sessionId"`
		UserID    string `json:"userId"`
		ItemID    string `json:"itemId"`
		ItemName  string `json:"itemName"`
		Size      int64  `json:"size"` // client-reported, trusted
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if body.SessionID == "" || body.UserID == "" || body.ItemID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sessionId, userId and itemId are required"})
	}
	if body.Size < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "size must be non-negative"})
	}
	if body.ItemName == "" {
		body.ItemName = "item"
	}

	client, errResp := h.resolveClient(c, body.SessionID, body.UserID)
	if client == nil {
		return errResp
	}

	if err := client.DeleteItem(c.Context(), body.ItemID); err != nil {
		return providerErrorResponse(c, err)
	}

	if err := h.Hub.OnAction(body.SessionID, body.UserID, body.ItemName, body.Size); err != nil {
		// The provider delete went through but the session vanished
		// meanwhile; report locally, never into the room.
		return sessionErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func providerErrorResponse(c *fiber.Ctx, err error) error {
	if errors.Is(err, utils.ErrProviderAuth) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Storage token expired or missing. Please log in again."})
	}
	log.Printf("[Files] provider error: %v", err)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Storage provider error"})
}
