// handlers/auth.go
package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"cleanup-game-system/config"
	"cleanup-game-system/services"
	"cleanup-game-system/utils"
)

// AuthHandler serves the client-side auth config and the join endpoint.
// Token acquisition itself happens in the browser (MSAL / Google Identity);
// this service only stores the delegated token on the participant record.
type AuthHandler struct {
	Hub *services.Broadcaster
	Cfg *config.Config
}

func NewAuthHandler(hub *services.Broadcaster, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Hub: hub, Cfg: cfg}
}

func SetupAuthRoutes(app *fiber.App, h *AuthHandler) {
	app.Get("/api/auth/config", h.ClientConfig)
	app.Post("/api/auth/join", h.Join)
}

// ClientConfig exposes the public identifiers the frontend needs to run
// its login flows. Secrets never leave the server.
func (h *AuthHandler) ClientConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"azureClientId":   h.Cfg.AzureClientID,
		"azureTenantId":   h.Cfg.AzureTenantID,
		"googleClientId":  h.Cfg.GoogleClientID,
		"defaultProvider": h.Cfg.DefaultProvider,
	})
}

// Join adds (or re-merges) a participant into a session. Display names are
// normalized before they hit the shared screen.
func (h *AuthHandler) Join(c *fiber.Ctx) error {
	var body struct {
		SessionID   string `json:"sessionId"`
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		AccessToken string `json:"accessToken"`
		Provider    string `json:"provider"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if body.SessionID == "" || body.UserID == "" || body.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sessionId, userId and displayName are required"})
	}

	provider := body.Provider
	if provider == "" {
		provider = h.Cfg.DefaultProvider
	}

	if h.Cfg.ValidateTokens && provider == utils.ProviderGraph && body.AccessToken != "" {
		if err := utils.NewGraphClient(body.AccessToken).Me(c.Context()); err != nil {
			log.Printf("[Auth] token probe failed for %s: %v", body.UserID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Storage token rejected. Please log in again."})
		}
	}

	displayName := utils.NormalizeDisplayName(body.DisplayName)
	view, err := h.Hub.OnJoin(body.SessionID, body.UserID, displayName, body.AccessToken, provider)
	if err != nil {
		return sessionErrorResponse(c, err)
	}

	log.Printf("User %s joined session %s", utils.ASCIIName(displayName), body.SessionID)
	return c.JSON(fiber.Map{"ok": true, "sessionId": view.ID})
}
