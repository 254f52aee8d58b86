package locations

import (
	"errors"

	"backend-fieldroute/internal/auth"
	"backend-fieldroute/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func RegisterRoutes(r fiber.Router, svc *Service, drawings *Drawings, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req FieldLocation
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.CreatedBy = auth.UserID(c)
		created, err := svc.Create(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.List(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(list)
	})

	r.Post("/vet", authMiddleware, func(c *fiber.Ctx) error {
		var req coordinate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		vetting, err := svc.Vet(c.Context(), req.Lat, req.Lng)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(vetting)
	})

	r.Post("/filter", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Polygon geo.Polygon `json:"polygon"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		matches, err := svc.Filter(c.Context(), req.Polygon)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(matches)
	})

	geofence := r.Group("/geofence", authMiddleware)

	geofence.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(stateOf(drawings.For(auth.UserID(c))))
	})

	geofence.Post("/begin", func(c *fiber.Ctx) error {
		e := drawings.For(auth.UserID(c))
		e.BeginDrawing()
		return c.JSON(stateOf(e))
	})

	geofence.Post("/click", func(c *fiber.Ctx) error {
		var req coordinate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := geo.ValidCoordinate(req.Lat, req.Lng); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		e := drawings.For(auth.UserID(c))
		e.Click(req.Lat, req.Lng)
		return c.JSON(stateOf(e))
	})

	geofence.Post("/close", func(c *fiber.Ctx) error {
		e := drawings.For(auth.UserID(c))
		finalized := e.DoubleClick()
		resp := fiber.Map{"finalized": finalized, "state": stateOf(e)}
		if finalized {
			poly, _ := e.Polygon()
			matches, err := svc.Filter(c.Context(), poly)
			if err != nil {
				return httpError(err)
			}
			resp["matches"] = matches
		}
		return c.JSON(resp)
	})

	geofence.Post("/cancel", func(c *fiber.Ctx) error {
		e := drawings.For(auth.UserID(c))
		e.Cancel()
		return c.JSON(stateOf(e))
	})

	geofence.Delete("/", func(c *fiber.Ctx) error {
		drawings.For(auth.UserID(c)).Clear()
		return c.SendStatus(fiber.StatusNoContent)
	})

	geofence.Get("/matches", func(c *fiber.Ctx) error {
		poly, ok := drawings.For(auth.UserID(c)).Polygon()
		if !ok {
			return c.JSON([]FieldLocation{})
		}
		matches, err := svc.Filter(c.Context(), poly)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(matches)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		l, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(l)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
