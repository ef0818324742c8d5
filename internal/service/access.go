package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// DefaultQRPrefix is the first field of a QR payload.
const DefaultQRPrefix = "PARKHERO"

// ActionOpenBarrier tells a barrier to open.
const ActionOpenBarrier = "open_barrier"

// Messages shown on failed validations.
const (
	msgInvalidCode    = "Invalid access code"
	msgInvalidDevice  = "Invalid barrier device"
	msgInvalidQR      = "Invalid QR format"
	msgBookingMissing = "Booking not found"
	msgNotActive      = "Booking not active (Check time)"
)

// AccessResult is the outcome of a code lookup.  Failures set Valid to
// false together with Error and Kind; booking details are filled in
// whenever a booking was found.
type AccessResult struct {
	Valid                bool                `json:"valid"`
	Error                string              `json:"error,omitempty"`
	Kind                 Kind                `json:"kind,omitempty"`
	BookingID            uint64              `json:"booking_id,omitempty"`
	UserID               uint64              `json:"user_id,omitempty"`
	Status               model.BookingStatus `json:"status,omitempty"`
	SpotCode             string              `json:"spot_code,omitempty"`
	Floor                string              `json:"floor,omitempty"`
	FacilityID           uint64              `json:"facility_id,omitempty"`
	Facility             string              `json:"facility,omitempty"`
	StartTime            *time.Time          `json:"start_time,omitempty"`
	EndTime              *time.Time          `json:"end_time,omitempty"`
	TimeRemainingSeconds int64               `json:"time_remaining_seconds"`
}

// BarrierResult is the outcome of a barrier handshake.
type BarrierResult struct {
	Valid          bool    `json:"valid"`
	Error          string  `json:"error,omitempty"`
	Kind           Kind    `json:"kind,omitempty"`
	Action         string  `json:"action,omitempty"`
	BookingID      uint64  `json:"booking_id,omitempty"`
	Facility       string  `json:"facility,omitempty"`
	DurationHours  float64 `json:"duration_hours,omitempty"`
	SpotsAvailable *int    `json:"spots_available,omitempty"`
}

// AccessPayload is what a requester shows at the gate.
type AccessPayload struct {
	BookingID  uint64 `json:"booking_id"`
	AccessCode string `json:"access_code"`
	Payload    string `json:"payload"`
}

// AccessValidator answers whether a booking grants entry right now.  It
// never changes booking or spot state.
type AccessValidator struct {
	Store    repository.Store
	QRPrefix string
	Log      *slog.Logger
	Now      func() time.Time
}

// NewAccessValidator returns a validator using prefix for QR payloads,
// or DefaultQRPrefix when prefix is empty.
func NewAccessValidator(store repository.Store, prefix string, log *slog.Logger) *AccessValidator {
	if prefix == "" {
		prefix = DefaultQRPrefix
	}
	if log == nil {
		log = slog.Default()
	}
	return &AccessValidator{
		Store:    store,
		QRPrefix: prefix,
		Log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Payload renders the QR payload PREFIX-CODE-ID for b.
func (a *AccessValidator) Payload(b model.Booking) AccessPayload {
	return AccessPayload{
		BookingID:  b.ID,
		AccessCode: b.AccessCode,
		Payload:    fmt.Sprintf("%s-%s-%d", a.QRPrefix, b.AccessCode, b.ID),
	}
}

// ParsePayload splits a QR payload into access code and booking id.
func (a *AccessValidator) ParsePayload(payload string) (string, uint64, error) {
	parts := strings.Split(strings.TrimSpace(payload), "-")
	if len(parts) != 3 || parts[0] != a.QRPrefix || !IsAccessCode(parts[1]) {
		return "", 0, newError(KindValidation, msgInvalidQR)
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil || id == 0 {
		return "", 0, newError(KindValidation, msgInvalidQR)
	}
	return parts[1], id, nil
}

// resolve finds the booking holding code and, when bookingID is non-zero,
// requires it to be that booking.  A nil *Error with nil error means the
// booking was found.
func (a *AccessValidator) resolve(ctx context.Context, code string, bookingID uint64, missing string) (model.Booking, *Error, error) {
	b, err := a.Store.GetBookingByAccessCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Booking{}, newError(KindNotFound, missing), nil
		}
		return model.Booking{}, nil, err
	}
	if bookingID != 0 && b.ID != bookingID {
		return model.Booking{}, newError(KindNotFound, missing), nil
	}
	return b, nil, nil
}

// checkWindow is the single validity rule both channels share: the
// booking must be holding its spot and now must fall in [start, end).
func checkWindow(b model.Booking, now time.Time) *Error {
	if !b.Status.IsHolding() || !b.InWindow(now) {
		return newError(KindInvalidState, msgNotActive)
	}
	return nil
}

// ValidateCode checks an access code typed or scanned by a user.  The
// returned error is reserved for store failures.
func (a *AccessValidator) ValidateCode(ctx context.Context, code string) (AccessResult, error) {
	now := a.Now()
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsAccessCode(code) {
		return AccessResult{Error: msgInvalidCode, Kind: KindNotFound}, nil
	}
	b, fail, err := a.resolve(ctx, code, 0, msgInvalidCode)
	if err != nil {
		return AccessResult{}, fmt.Errorf("validate code: %w", err)
	}
	if fail != nil {
		return AccessResult{Error: fail.Message, Kind: fail.Kind}, nil
	}

	loc, err := a.Store.GetSpotLocation(ctx, b.SpotID)
	if err != nil {
		return AccessResult{}, fmt.Errorf("validate code: spot location: %w", err)
	}
	start, end := b.StartTime, b.EndTime
	res := AccessResult{
		BookingID:  b.ID,
		UserID:     b.UserID,
		Status:     b.EffectiveStatus(now),
		SpotCode:   loc.SpotCode,
		Floor:      loc.FloorLabel,
		FacilityID: loc.FacilityID,
		Facility:   loc.FacilityName,
		StartTime:  &start,
		EndTime:    &end,
	}
	if fail := checkWindow(b, now); fail != nil {
		res.Error, res.Kind = fail.Message, fail.Kind
		return res, nil
	}
	res.Valid = true
	res.TimeRemainingSeconds = int64(b.EndTime.Sub(now) / time.Second)
	return res, nil
}

// ValidateBarrier runs the barrier handshake for a scanned QR payload.
// The device must be a barrier bound to a facility, the payload's code
// and id must name the same booking, the booking's spot must belong to
// the barrier's facility and the booking must be inside its window.
func (a *AccessValidator) ValidateBarrier(ctx context.Context, payload, deviceCode string) (BarrierResult, error) {
	now := a.Now()
	dev, err := a.Store.GetDeviceByCode(ctx, strings.TrimSpace(deviceCode))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return BarrierResult{}, fmt.Errorf("validate barrier: device: %w", err)
	}
	if err != nil || dev.Type != model.DeviceBarrier || dev.BoundFacilityID == nil {
		return BarrierResult{Error: msgInvalidDevice, Kind: KindNotFound}, nil
	}

	code, id, perr := a.ParsePayload(payload)
	if perr != nil {
		return BarrierResult{Error: msgInvalidQR, Kind: KindValidation}, nil
	}
	b, fail, err := a.resolve(ctx, code, id, msgBookingMissing)
	if err != nil {
		return BarrierResult{}, fmt.Errorf("validate barrier: %w", err)
	}
	if fail != nil {
		return BarrierResult{Error: fail.Message, Kind: fail.Kind}, nil
	}

	loc, err := a.Store.GetSpotLocation(ctx, b.SpotID)
	if err != nil {
		return BarrierResult{}, fmt.Errorf("validate barrier: spot location: %w", err)
	}
	if loc.FacilityID != *dev.BoundFacilityID {
		a.Log.Info("barrier rejected cross-facility ticket", "device", dev.Code,
			"booking_id", b.ID, "booking_facility_id", loc.FacilityID)
		return BarrierResult{
			Error:     fmt.Sprintf("Ticket not valid for this facility (Go to %s)", loc.FacilityName),
			Kind:      KindCrossFacility,
			BookingID: b.ID,
		}, nil
	}
	if fail := checkWindow(b, now); fail != nil {
		return BarrierResult{Error: fail.Message, Kind: fail.Kind, BookingID: b.ID}, nil
	}

	avail, err := a.Store.CountAvailableSpots(ctx, loc.FacilityID)
	if err != nil {
		return BarrierResult{}, fmt.Errorf("validate barrier: available spots: %w", err)
	}
	return BarrierResult{
		Valid:          true,
		Action:         ActionOpenBarrier,
		BookingID:      b.ID,
		Facility:       loc.FacilityName,
		DurationHours:  math.Round(b.DurationHours()*10) / 10,
		SpotsAvailable: &avail,
	}, nil
}
