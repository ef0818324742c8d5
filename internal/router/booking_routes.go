package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterBookings registers the booking lifecycle endpoints.  Every
// route needs a valid JWT; completing a booking is admin only.  Who may
// approve, reject or cancel is decided per booking by the service.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/bookings", h.Create)
	g.GET("/my-bookings", h.ListMine)
	g.GET("/bookings/:id", h.Get)
	g.GET("/bookings/:id/access", h.AccessPayload)
	g.POST("/bookings/:id/approve", h.Approve)
	g.POST("/bookings/:id/reject", h.Reject)
	g.POST("/bookings/:id/cancel", h.Cancel)
	g.POST("/bookings/:id/complete", h.Complete, middleware.RequireRole(model.RoleAdmin))
}
