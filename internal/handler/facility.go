package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/service"
)

// FacilityHandler serves facility summaries.
type FacilityHandler struct {
	Facilities *service.FacilityService
	Log        *slog.Logger
}

func NewFacilityHandler(f *service.FacilityService, log *slog.Logger) *FacilityHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FacilityHandler{Facilities: f, Log: log}
}

// Stats handles GET /v1/facilities/:id/stats.
func (h *FacilityHandler) Stats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id", "kind": service.KindValidation})
	}
	st, err := h.Facilities.Stats(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Spots handles GET /v1/facilities/:id/spots.
func (h *FacilityHandler) Spots(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id", "kind": service.KindValidation})
	}
	spots, err := h.Facilities.Spots(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"facility_id": id, "spots": spots})
}
