package report

import (
	"bytes"
	"errors"
	"time"

	"backend-fieldroute/internal/auth"
	"backend-fieldroute/internal/tracking"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/monthly", authMiddleware, func(c *fiber.Ctx) error {
		user := auth.UserID(c)
		if user == "" {
			return fiber.NewError(fiber.StatusUnauthorized, tracking.ErrNotAuthenticated.Error())
		}
		month := svc.now()
		if v := c.Query("month"); v != "" {
			parsed, err := time.ParseInLocation(MonthLayout, v, svc.Location())
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "month must be YYYY-MM")
			}
			month = parsed
		}
		days, err := svc.Monthly(c.Context(), user, month)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"month": svc.MonthStart(month).Format(MonthLayout),
			"days":  days,
		})
	})

	r.Get("/sessions/:id/kml", authMiddleware, func(c *fiber.Ctx) error {
		user := auth.UserID(c)
		session, found, err := svc.SessionStops(c.Context(), c.Params("id"))
		if errors.Is(err, tracking.ErrSessionNotFound) || (err == nil && session.SalespersonID != user) {
			return fiber.NewError(fiber.StatusNotFound, tracking.ErrSessionNotFound.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		var buf bytes.Buffer
		if err := WriteSessionKML(&buf, session, found); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, KMLContentType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="session-`+session.ID+`.kml"`)
		return c.Send(buf.Bytes())
	})
}
