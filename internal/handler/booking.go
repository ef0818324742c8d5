package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// BookingHandler serves the booking lifecycle endpoints.  All methods
// run behind JWTAuth.
type BookingHandler struct {
	Bookings *service.BookingService
	Access   *service.AccessValidator
	Log      *slog.Logger
}

func NewBookingHandler(b *service.BookingService, a *service.AccessValidator, log *slog.Logger) *BookingHandler {
	if b == nil || a == nil {
		panic("nil service passed to NewBookingHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &BookingHandler{Bookings: b, Access: a, Log: log}
}

type createBookingReq struct {
	FacilityID    uint64     `json:"facility_id" validate:"required"`
	DurationHours float64    `json:"duration_hours" validate:"required"`
	StartTime     *time.Time `json:"start_time"`
}

type rejectReq struct {
	Reason string `json:"reason" validate:"max=255"`
}

type bookingResp struct {
	ID              uint64              `json:"id"`
	SpotID          uint64              `json:"spot_id"`
	UserID          uint64              `json:"user_id"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	Status          model.BookingStatus `json:"status"`
	Active          bool                `json:"active"`
	AccessCode      string              `json:"access_code"`
	HostID          *uint64             `json:"host_id,omitempty"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func (h *BookingHandler) toResp(b model.Booking) bookingResp {
	return bookingResp{
		ID:              b.ID,
		SpotID:          b.SpotID,
		UserID:          b.UserID,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Status:          b.Status,
		Active:          b.EffectiveStatus(h.Bookings.Now()) == model.BookingActive,
		AccessCode:      b.AccessCode,
		HostID:          b.HostID,
		RejectionReason: b.RejectionReason,
		CreatedAt:       b.CreatedAt,
	}
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	b, err := h.Bookings.Create(c.Request().Context(), service.CreateBookingInput{
		FacilityID:    req.FacilityID,
		UserID:        uid,
		DurationHours: req.DurationHours,
		StartTime:     req.StartTime,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, h.toResp(b))
}

// ListMine handles GET /v1/my-bookings.  ?active_only=true keeps only
// reserved and active bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	activeOnly := c.QueryParam("active_only") == "true" || c.QueryParam("active_only") == "1"
	list, err := h.Bookings.ListForUser(c.Request().Context(), uid, activeOnly)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]bookingResp, 0, len(list))
	for _, b := range list {
		out = append(out, h.toResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	return h.withBooking(c, func(id uint64, actor service.Actor) (model.Booking, error) {
		return h.Bookings.Get(c.Request().Context(), id, actor)
	})
}

// Approve handles POST /v1/bookings/:id/approve.
func (h *BookingHandler) Approve(c echo.Context) error {
	return h.withBooking(c, func(id uint64, actor service.Actor) (model.Booking, error) {
		return h.Bookings.Approve(c.Request().Context(), id, actor.UserID)
	})
}

// Reject handles POST /v1/bookings/:id/reject.  The body is optional.
func (h *BookingHandler) Reject(c echo.Context) error {
	var req rejectReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.withBooking(c, func(id uint64, actor service.Actor) (model.Booking, error) {
		return h.Bookings.Reject(c.Request().Context(), id, actor.UserID, req.Reason)
	})
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.withBooking(c, func(id uint64, actor service.Actor) (model.Booking, error) {
		return h.Bookings.Cancel(c.Request().Context(), id, actor)
	})
}

// Complete handles POST /v1/bookings/:id/complete (admin only).
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.withBooking(c, func(id uint64, actor service.Actor) (model.Booking, error) {
		return h.Bookings.Complete(c.Request().Context(), id, actor)
	})
}

// AccessPayload handles GET /v1/bookings/:id/access.  It returns the
// access code and the QR payload string for the requester or an admin.
func (h *BookingHandler) AccessPayload(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id", "kind": service.KindValidation})
	}
	b, err := h.Bookings.Get(c.Request().Context(), id, actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !actor.Admin && b.UserID != actor.UserID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "booking belongs to another user", "kind": service.KindNotAuthorized})
	}
	if !b.Status.IsHolding() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking has no usable access code", "kind": service.KindInvalidState})
	}
	return c.JSON(http.StatusOK, h.Access.Payload(b))
}

func (h *BookingHandler) withBooking(c echo.Context, op func(id uint64, actor service.Actor) (model.Booking, error)) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id", "kind": service.KindValidation})
	}
	b, err := op(id, actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, h.toResp(b))
}
