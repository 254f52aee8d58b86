package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"backend-fieldroute/internal/auth"
	"backend-fieldroute/internal/shared/geo"
	"backend-fieldroute/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
)

const localBacklog = "stream_backlog"

// SessionSource resolves the session a viewer asks to follow.
type SessionSource interface {
	Session(ctx context.Context, id string) (tracking.Session, error)
}

// RegisterRoutes exposes /ws/:sessionID. A viewer may only follow their own
// session; the points already stored are replayed before live ones.
func RegisterRoutes(r fiber.Router, hub *Hub, sessions SessionSource, authMiddleware fiber.Handler) {
	r.Use("/ws", authMiddleware, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/:sessionID", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		session, err := sessions.Session(ctx, c.Params("sessionID"))
		switch {
		case errors.Is(err, tracking.ErrSessionNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		case session.SalespersonID != auth.UserID(c):
			return fiber.NewError(fiber.StatusNotFound, tracking.ErrSessionNotFound.Error())
		case !session.Active():
			return fiber.NewError(fiber.StatusGone, "session already closed")
		}
		c.Locals(localBacklog, session.Points)
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		entry := log.WithFields(log.Fields{"component": "stream", "session_id": sessionID})

		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		backlog, _ := c.Locals(localBacklog).([]geo.GpsPoint)
		for _, p := range backlog {
			payload, err := json.Marshal(p)
			if err != nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
		entry.WithField("backlog", len(backlog)).Debug("viewer attached")

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
