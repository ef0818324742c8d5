package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
)

// RegisterAccess registers the public access validation endpoints behind
// limit, which throttles access code guessing.
func RegisterAccess(e *echo.Echo, h *handler.AccessHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/access", limit)
	g.POST("/validate", h.Validate)
	g.POST("/barrier", h.Barrier)
}

// RegisterFacilities registers the public facility summaries behind
// cache.
func RegisterFacilities(e *echo.Echo, h *handler.FacilityHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/facilities/:id/stats", h.Stats, cache)
	e.GET("/v1/facilities/:id/spots", h.Spots, cache)
}
