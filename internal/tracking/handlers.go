package tracking

import (
	"context"
	"errors"
	"time"

	"backend-fieldroute/internal/auth"
	"backend-fieldroute/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
)

type polylineResponse struct {
	SessionID string   `json:"session_id"`
	Polyline  string   `json:"polyline"`
	Points    int      `json:"points"`
	TotalKm   *float64 `json:"total_km,omitempty"`
}

func RegisterRoutes(r fiber.Router, m *Manager, authMiddleware fiber.Handler) {
	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := m.Start(c.Context(), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := m.Stop(c.Context(), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Get("/state", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := m.Snapshot(c.Context(), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Get("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		user := auth.UserID(c)
		if user == "" {
			return httpError(ErrNotAuthenticated)
		}
		to := time.Now()
		from := to.AddDate(0, 0, -30)
		var err error
		if v := c.Query("from"); v != "" {
			if from, err = time.Parse(time.DateOnly, v); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
			}
		}
		if v := c.Query("to"); v != "" {
			day, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to must be YYYY-MM-DD")
			}
			// the named day is included
			to = day.AddDate(0, 0, 1)
		}
		sessions, err := m.Store().HistoricalSessions(c.Context(), user, from, to)
		if err != nil {
			return httpError(err)
		}
		if sessions == nil {
			sessions = []Session{}
		}
		return c.JSON(sessions)
	})

	r.Get("/sessions/:id/polyline", authMiddleware, func(c *fiber.Ctx) error {
		session, err := m.Store().Session(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		if session.SalespersonID != auth.UserID(c) {
			return httpError(ErrSessionNotFound)
		}
		path := make([]geo.Point, len(session.Points))
		for i, p := range session.Points {
			path[i] = p.Point()
		}
		return c.JSON(polylineResponse{
			SessionID: session.ID,
			Polyline:  geo.EncodePolyline(path),
			Points:    len(path),
			TotalKm:   session.TotalKm,
		})
	})

	r.Use("/ws", authMiddleware, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		user, _ := c.Locals(auth.LocalUserID).(string)
		entry := log.WithFields(log.Fields{"component": "device_feed", "salesperson_id": user})
		if _, err := m.Tracker(context.Background(), user); err != nil {
			_ = c.WriteJSON(fiber.Map{"error": err.Error()})
			return
		}
		feed := m.Feed(user)
		entry.Debug("device connected")
		defer entry.Debug("device disconnected")

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			switch err := feed.DeliverJSON(raw); {
			case errors.Is(err, ErrNoWatch):
				// not tracking; the device keeps sending and we keep ignoring
			case err != nil:
				_ = c.WriteJSON(fiber.Map{"error": "malformed frame"})
			}
		}
	}))
}

func httpError(err error) error {
	var pe *PersistenceError
	var le *LocationError
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &pe):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.As(err, &le):
		return fiber.NewError(fiber.StatusUnprocessableEntity, le.Message())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
