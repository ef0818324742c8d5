package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/service"
)

// AccessHandler exposes the two access validation channels.  Both
// endpoints are public; the rate limiter in front of them is the only
// guard.
type AccessHandler struct {
	Validator *service.AccessValidator
	Log       *slog.Logger
}

func NewAccessHandler(v *service.AccessValidator, log *slog.Logger) *AccessHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AccessHandler{Validator: v, Log: log}
}

type validateReq struct {
	AccessCode string `json:"access_code" validate:"required"`
}

type barrierReq struct {
	QRCode     string `json:"qr_code" validate:"required"`
	DeviceCode string `json:"device_code" validate:"required"`
}

// Validate handles POST /v1/access/validate.  A rejected code is still
// a 200 with valid=false; the body carries the reason.
func (h *AccessHandler) Validate(c echo.Context) error {
	var req validateReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Validator.ValidateCode(c.Request().Context(), req.AccessCode)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Barrier handles POST /v1/access/barrier.
func (h *AccessHandler) Barrier(c echo.Context) error {
	var req barrierReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Validator.ValidateBarrier(c.Request().Context(), req.QRCode, req.DeviceCode)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if res.Valid {
		h.Log.Info("barrier opened", "device", req.DeviceCode, "booking_id", res.BookingID)
	}
	return c.JSON(http.StatusOK, res)
}
