// handlers/events.go
package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"cleanup-game-system/middleware"
	"cleanup-game-system/services"
)

// EventsHandler owns the SSE endpoint: one stream per connected player,
// fed from that connection's room mailbox.
type EventsHandler struct {
	Hub *services.Broadcaster
}

func NewEventsHandler(hub *services.Broadcaster) *EventsHandler {
	return &EventsHandler{Hub: hub}
}

// Stream attaches the connection to the session room and relays everything
// the coordinator fans out. The first frames are the private presence +
// stats replay pushed by Subscribe, so late joiners render immediately.
//
// GET /api/session/:sessionId/events?userId=...
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	sessionID, _ := c.Locals(middleware.SSESessionKey).(string)
	userID, _ := c.Locals(middleware.SSEUserIDKey).(string)

	sub, err := h.Hub.Subscribe(sessionID)
	if err != nil {
		return sessionErrorResponse(c, err)
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ctx := c.Context()
	hub := h.Hub

	// Use the fasthttp stream writer (THIS replaces Flush)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			hub.Unsubscribe(sessionID, sub)
			// Disconnect doubles as leave; the client re-joins over REST
			// when it reconnects.
			hub.OnLeave(sessionID, userID)
			log.Printf("Stream closed for %s in session %s", userID, sessionID)
		}()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case msg, ok := <-sub.C:
				if !ok {
					// Room torn down (session ended); say goodbye cleanly.
					fmt.Fprint(w, "event: bye\ndata: {}\n\n")
					w.Flush()
					return
				}
				payload, err := json.Marshal(msg.Data)
				if err != nil {
					log.Printf("SSE encode error for session %s: %v", sessionID, err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
