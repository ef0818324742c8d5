package repository

import (
	"context"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// Queries is the set of reads and writes available inside one booking
// transaction.  Implementations must take row locks on the spots and
// bookings they return so that concurrent transactions serialise on the
// same spot.
type Queries interface {
	GetFacility(ctx context.Context, id uint64) (model.Facility, error)
	// ListCandidateSpots returns the facility's available spots ordered by
	// distance from entry, then code.
	ListCandidateSpots(ctx context.Context, facilityID uint64) ([]model.Spot, error)
	// HasOverlap reports whether a non-terminal booking on the spot other
	// than excludeID intersects [start, end).  excludeID 0 excludes nothing.
	HasOverlap(ctx context.Context, spotID uint64, start, end time.Time, excludeID uint64) (bool, error)
	AccessCodeExists(ctx context.Context, code string) (bool, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, reason *string, updatedAt time.Time) error
	UpdateSpotStatus(ctx context.Context, spotID uint64, status model.SpotStatus) error
}

// Store is the persistence surface used by the booking and access
// services.  InTx runs fn inside a single isolated transaction and
// commits only when fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error

	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	GetBookingByAccessCode(ctx context.Context, code string) (model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.Booking, error)
	// ListEndedBookings returns ids of bookings in one of statuses whose
	// end time is at or before now, oldest first.
	ListEndedBookings(ctx context.Context, statuses []model.BookingStatus, now time.Time, limit int) ([]uint64, error)

	GetFacility(ctx context.Context, id uint64) (model.Facility, error)
	GetFacilityStats(ctx context.Context, facilityID uint64) (model.FacilityStats, error)
	// ListFacilitySpots returns the spots of a facility in allocation
	// order, or ErrNotFound when the facility does not exist.
	ListFacilitySpots(ctx context.Context, facilityID uint64) ([]model.SpotSummary, error)
	CountAvailableSpots(ctx context.Context, facilityID uint64) (int, error)
	GetSpotLocation(ctx context.Context, spotID uint64) (model.SpotLocation, error)
	GetDeviceByCode(ctx context.Context, code string) (model.Device, error)
}

// statusArgs expands statuses into an IN placeholder list and its args.
func statusArgs(statuses []model.BookingStatus) (string, []interface{}) {
	ph := make([]byte, 0, len(statuses)*2)
	args := make([]interface{}, 0, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			ph = append(ph, ',')
		}
		ph = append(ph, '?')
		args = append(args, string(s))
	}
	return string(ph), args
}
